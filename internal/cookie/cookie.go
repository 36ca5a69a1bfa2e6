package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/line-relay/internal/log"
)

// SessionCookie is the name of the relay's session cookie
const SessionCookie = "session"

// SetSession sets the session cookie. Secure follows configuration since the
// relay often runs behind plain HTTP locally. No SameSite attribute: the
// OAuth callback arrives as a cross-site form POST and must carry the cookie.
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogDebugWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": secure,
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}
