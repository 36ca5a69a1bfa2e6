// Package session issues the relay's browser sessions. A session is only an
// identifier; it lives in a signed, expiring cookie and nothing is kept
// server-side.
package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/line-relay/internal/cookie"
	"github.com/dgellow/line-relay/internal/crypto"
	"github.com/dgellow/line-relay/internal/log"
	"github.com/google/uuid"
)

// Payload is what the session cookie carries
type Payload struct {
	ID string `json:"id"`
}

// Manager creates and reads sessions
type Manager struct {
	signer crypto.TokenSigner
	secure bool
	newID  func() string
}

// NewManager creates a manager; the signer's TTL is also the cookie Max-Age
func NewManager(signer crypto.TokenSigner, secure bool) *Manager {
	return &Manager{
		signer: signer,
		secure: secure,
		newID:  uuid.NewString,
	}
}

// Current returns the session id carried by the request, if any is valid
func (m *Manager) Current(r *http.Request) (string, bool) {
	value, err := cookie.GetSession(r)
	if err != nil {
		return "", false
	}

	var payload Payload
	if err := m.signer.Verify(value, &payload); err != nil {
		if !errors.Is(err, crypto.ErrTokenExpired) {
			log.LogDebugWithFields("session", "Rejected session cookie", map[string]any{
				"error": err.Error(),
			})
		}
		return "", false
	}
	if payload.ID == "" {
		return "", false
	}
	return payload.ID, true
}

// Ensure returns the current session id, starting a new session and setting
// its cookie on w when the request has none.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := m.Current(r); ok {
		return id, nil
	}

	id := m.newID()
	value, err := m.signer.Sign(Payload{ID: id})
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	cookie.SetSession(w, value, m.signer.TTL(), m.secure)

	log.LogDebugWithFields("session", "Started session", map[string]any{
		"sessionID": id,
	})
	return id, nil
}
