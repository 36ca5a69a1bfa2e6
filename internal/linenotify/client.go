// Package linenotify talks to LINE Notify: the OAuth2 authorization code
// flow that yields a notify token, and the notify endpoint itself.
package linenotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgellow/line-relay/internal/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Scope is the only scope LINE Notify defines
const Scope = "notify"

// Options configures a Client
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthorizeURL string
	TokenURL     string
	NotifyURL    string
	HTTPClient   *http.Client
}

// Client wraps the OAuth2 config and the notify endpoint
type Client struct {
	oauth      *oauth2.Config
	notifyURL  string
	httpClient *http.Client

	// Browsers occasionally resubmit the callback form; identical codes share one exchange
	exchanges singleflight.Group
}

// NewClient creates a LINE Notify client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  opts.AuthorizeURL,
				TokenURL: opts.TokenURL,
				// LINE Notify reads client credentials from the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: opts.RedirectURL,
			Scopes:      []string{Scope},
		},
		notifyURL:  opts.NotifyURL,
		httpClient: httpClient,
	}
}

// AuthCodeURL builds the authorization URL. LINE posts the result back to
// the redirect URI as a form (response_mode=form_post).
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "form_post"))
}

// Exchange trades an authorization code for an access token
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	v, err, shared := c.exchanges.Do(code, func() (any, error) {
		ctx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		token, err := c.oauth.Exchange(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to exchange code: %w", err)
		}
		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.LogDebugWithFields("linenotify", "Shared in-flight code exchange", nil)
	}
	return v.(string), nil
}

// Response is what the notify endpoint answered
type Response struct {
	HTTPStatus int `json:"-"`
	// Status and Message come from the JSON body when LINE sends one
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Code is the status used for classification: the body's status when
// present, the HTTP status otherwise.
func (r Response) Code() int {
	if r.Status != 0 {
		return r.Status
	}
	return r.HTTPStatus
}

// Send posts message to the notify endpoint with token as bearer credentials.
// Non-2xx answers are not errors; callers classify Response.Code.
func (c *Client) Send(ctx context.Context, token, message string) (Response, error) {
	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.notifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("notify request failed: %w", err)
	}
	defer resp.Body.Close()

	result := Response{HTTPStatus: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return result, fmt.Errorf("failed to read notify response: %w", err)
	}
	if len(body) > 0 {
		// Best effort: LINE answers JSON, proxies in front of it may not
		_ = json.Unmarshal(body, &result)
	}
	return result, nil
}
