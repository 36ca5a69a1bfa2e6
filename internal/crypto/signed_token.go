package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned once a token outlives the signer's TTL
	ErrTokenExpired = errors.New("token expired")
)

// TokenSigner produces HMAC-signed JSON envelopes with an expiry.
// Session cookies are built on it: the payload travels in the clear, only
// its integrity and age are protected.
type TokenSigner struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// envelope is the signed payload; Exp is a unix timestamp, zero for no expiry
type envelope struct {
	Data json.RawMessage `json:"d"`
	Exp  int64           `json:"e,omitempty"`
}

// NewTokenSigner creates a signer. A zero ttl produces tokens that never expire.
func NewTokenSigner(signingKey []byte, ttl time.Duration) TokenSigner {
	return TokenSigner{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// TTL returns the lifetime of issued tokens
func (ts TokenSigner) TTL() time.Duration {
	return ts.ttl
}

// Sign encodes v as <base64(json)>.<signature>
func (ts TokenSigner) Sign(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data: %w", err)
	}

	env := envelope{Data: data}
	if ts.ttl > 0 {
		env.Exp = ts.now().Add(ts.ttl).Unix()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + SignData(encoded, ts.signingKey), nil
}

// Verify checks signature and expiry, then decodes the payload into v
func (ts TokenSigner) Verify(token string, v any) error {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return ErrInvalidToken
	}
	if !ValidateSignedData(encoded, signature, ts.signingKey) {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if env.Exp != 0 && ts.now().Unix() >= env.Exp {
		return ErrTokenExpired
	}

	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal token data: %w", err)
	}
	return nil
}
