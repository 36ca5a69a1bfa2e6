package linenotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(tokenURL, notifyURL string) Options {
	return Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/line-notify/callback",
		AuthorizeURL: "https://notify-bot.line.me/oauth/authorize",
		TokenURL:     tokenURL,
		NotifyURL:    notifyURL,
	}
}

func TestAuthCodeURL(t *testing.T) {
	client := NewClient(testOptions("", ""))

	raw := client.AuthCodeURL("session-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "notify-bot.line.me", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/line-notify/callback", q.Get("redirect_uri"))
	assert.Equal(t, "notify", q.Get("scope"))
	assert.Equal(t, "session-123", q.Get("state"))
	assert.Equal(t, "form_post", q.Get("response_mode"))
	assert.Empty(t, q.Get("client_secret"))
}

func TestExchange(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, "the-code", r.PostForm.Get("code"))
			assert.Equal(t, "http://localhost:8080/auth/line-notify/callback", r.PostForm.Get("redirect_uri"))
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":       200,
				"message":      "access_token is issued",
				"access_token": "issued-token",
			})
		}))
		defer tokenServer.Close()

		client := NewClient(testOptions(tokenServer.URL, ""))
		token, err := client.Exchange(context.Background(), "the-code")
		require.NoError(t, err)
		assert.Equal(t, "issued-token", token)
	})

	t.Run("rejected code", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":400,"message":"Invalid code"}`))
		}))
		defer tokenServer.Close()

		client := NewClient(testOptions(tokenServer.URL, ""))
		_, err := client.Exchange(context.Background(), "bad-code")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to exchange code")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.NotFoundHandler())
		tokenServer.Close()

		client := NewClient(testOptions(tokenServer.URL, ""))
		_, err := client.Exchange(context.Background(), "code")
		assert.Error(t, err)
	})
}

func TestSend(t *testing.T) {
	t.Run("posts form with bearer token", func(t *testing.T) {
		notifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "こんにちは & bye", r.PostForm.Get("message"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":200,"message":"ok"}`))
		}))
		defer notifyServer.Close()

		client := NewClient(testOptions("", notifyServer.URL))
		resp, err := client.Send(context.Background(), "tok", "こんにちは & bye")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.HTTPStatus)
		assert.Equal(t, 200, resp.Code())
		assert.Equal(t, "ok", resp.Message)
	})

	t.Run("non JSON error keeps HTTP status", func(t *testing.T) {
		notifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream down"))
		}))
		defer notifyServer.Close()

		client := NewClient(testOptions("", notifyServer.URL))
		resp, err := client.Send(context.Background(), "tok", "hi")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code())
		assert.Equal(t, OutcomeRetryLater, Classify(resp.Code()))
	})

	t.Run("transport error", func(t *testing.T) {
		notifyServer := httptest.NewServer(http.NotFoundHandler())
		notifyServer.Close()

		client := NewClient(testOptions("", notifyServer.URL))
		_, err := client.Send(context.Background(), "tok", "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notify request failed")
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   Outcome
	}{
		{200, OutcomeSuccess},
		{400, OutcomeBadRequest},
		{401, OutcomeInvalidToken},
		{500, OutcomeServerError},
		{429, OutcomeRetryLater},
		{503, OutcomeRetryLater},
		{0, OutcomeRetryLater},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status), "status %d", tt.status)
	}
}
