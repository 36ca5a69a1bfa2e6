package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/dgellow/line-relay/internal/background"
	"github.com/dgellow/line-relay/internal/linenotify"
	"github.com/dgellow/line-relay/internal/log"
	"github.com/dgellow/line-relay/internal/session"
	"github.com/dgellow/line-relay/internal/storage"
)

// DefaultNotifyMessage is sent when /notify has no msg parameter
const DefaultNotifyMessage = "お知らせ"

// Plain text bodies of the relay's responses
const (
	bodyOK               = "OK"
	bodyBadOriginalURL   = "Bad originalUrl"
	bodyBadState         = "Bad state"
	bodyAccessTokenEmpty = "accessToken is empty"
)

// NotifyAPI is the LINE Notify surface the relay handlers use
type NotifyAPI interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	Send(ctx context.Context, token, message string) (linenotify.Response, error)
}

// RelayHandlers serves the LINE Notify OAuth relay
type RelayHandlers struct {
	notify        NotifyAPI
	store         storage.TokenStore
	sessions      *session.Manager
	runner        *background.Runner
	fallbackToken string
	callbackPath  string
}

// NewRelayHandlers creates the relay handlers. fallbackToken is used by
// /notify until a token has been obtained through the OAuth flow.
func NewRelayHandlers(
	notify NotifyAPI,
	store storage.TokenStore,
	sessions *session.Manager,
	runner *background.Runner,
	fallbackToken string,
	callbackPath string,
) *RelayHandlers {
	return &RelayHandlers{
		notify:        notify,
		store:         store,
		sessions:      sessions,
		runner:        runner,
		fallbackToken: fallbackToken,
		callbackPath:  callbackPath,
	}
}

// Register adds the relay routes to mux
func (h *RelayHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/line-notify", h.AuthorizeHandler)
	mux.HandleFunc("POST "+h.callbackPath, h.CallbackHandler)
	mux.HandleFunc("GET /notify", h.NotifyHandler)
}

// Claim sends POSTs whose path only loosely matches the callback path
// (case, trailing slash, doubled slashes) to CallbackHandler, which
// rejects them with 401 instead of the mux answering 404 or redirecting.
func (h *RelayHandlers) Claim(r *http.Request) (http.HandlerFunc, bool) {
	if r.Method != http.MethodPost || r.URL.Path == h.callbackPath {
		return nil, false
	}
	if !strings.EqualFold(path.Clean(r.URL.Path), h.callbackPath) {
		return nil, false
	}
	return h.CallbackHandler, true
}

// AuthorizeHandler starts the authorization code flow with the session id as state
func (h *RelayHandlers) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.sessions.Ensure(w, r)
	if err != nil {
		log.LogErrorWithFields("relay", "Failed to start session", map[string]any{
			"error": err.Error(),
		})
		writeText(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	authURL := h.notify.AuthCodeURL(sessionID)
	log.LogInfoWithFields("relay", "Redirecting to LINE Notify authorization", map[string]any{
		"url": authURL,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

type callbackForm struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// readCallbackForm accepts the form post LINE sends, and JSON for manual testing
func readCallbackForm(r *http.Request) (callbackForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var form callbackForm
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&form); err != nil {
			return callbackForm{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		return form, nil
	}

	if err := r.ParseForm(); err != nil {
		return callbackForm{}, fmt.Errorf("invalid form body: %w", err)
	}
	return callbackForm{
		Code:  r.PostForm.Get("code"),
		State: r.PostForm.Get("state"),
	}, nil
}

// CallbackHandler receives the authorization code, checks it belongs to
// the caller's session and exchanges it in the background
func (h *RelayHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	requestURI := r.URL.RequestURI()
	if requestURI != h.callbackPath {
		log.LogWarnWithFields("relay", "Callback received on unexpected URL", map[string]any{
			"requestURI": requestURI,
		})
		writeText(w, http.StatusUnauthorized, bodyBadOriginalURL)
		return
	}

	form, err := readCallbackForm(r)
	if err != nil {
		log.LogWarnWithFields("relay", "Unreadable callback body", map[string]any{
			"error": err.Error(),
		})
	}

	sessionID, ok := h.sessions.Current(r)
	if !ok || form.State == "" || form.State != sessionID {
		log.LogWarnWithFields("relay", "Callback state does not match session", map[string]any{
			"hasSession": ok,
		})
		writeText(w, http.StatusUnauthorized, bodyBadState)
		return
	}

	code := form.Code
	h.runner.Go(r.Context(), "get token", func(ctx context.Context) error {
		token, err := h.notify.Exchange(ctx, code)
		if err != nil {
			log.LogErrorWithFields("relay", "get token NG", map[string]any{
				"error": err.Error(),
			})
			return err
		}
		if err := h.store.SetAccessToken(ctx, token); err != nil {
			return fmt.Errorf("failed to store access token: %w", err)
		}
		log.LogInfoWithFields("relay", "get token OK", nil)
		return nil
	})

	writeText(w, http.StatusOK, bodyOK)
}

// currentToken returns the stored token, else the configured fallback
func (h *RelayHandlers) currentToken(ctx context.Context) string {
	token, err := h.store.GetAccessToken(ctx)
	if err == nil && token != "" {
		return token
	}
	if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		log.LogWarnWithFields("relay", "Failed to read stored token, using fallback", map[string]any{
			"error": err.Error(),
		})
	}
	return h.fallbackToken
}

// NotifyHandler forwards ?msg= to LINE Notify in the background
func (h *RelayHandlers) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	token := h.currentToken(r.Context())
	if token == "" {
		writeText(w, http.StatusInternalServerError, bodyAccessTokenEmpty)
		return
	}

	query := r.URL.Query()
	message := DefaultNotifyMessage
	if query.Has("msg") {
		message = query.Get("msg")
	}

	h.runner.Go(r.Context(), "send notify", func(ctx context.Context) error {
		resp, err := h.notify.Send(ctx, token, message)
		if err != nil {
			log.LogErrorWithFields("relay", "send notify NG", map[string]any{
				"error": err.Error(),
			})
			return err
		}

		outcome := linenotify.Classify(resp.Code())
		fields := map[string]any{
			"status":  resp.Code(),
			"outcome": string(outcome),
		}
		if resp.Message != "" {
			fields["message"] = resp.Message
		}
		if outcome == linenotify.OutcomeSuccess {
			log.LogInfoWithFields("relay", "send notify", fields)
		} else {
			log.LogWarnWithFields("relay", "send notify", fields)
		}
		return nil
	})

	writeText(w, http.StatusOK, bodyOK)
}
