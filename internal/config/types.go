package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Service names one of the processes this repository can run
type Service string

const (
	ServiceNotifyRelay    Service = "notify-relay"
	ServiceTaskDispatcher Service = "task-dispatcher"
	ServiceLineBot        Service = "line-bot"
)

// StorageKind selects the backend holding the relay's access token
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
	StorageRedis     StorageKind = "redis"
)

// LINE Notify endpoints
const (
	DefaultAuthorizeURL = "https://notify-bot.line.me/oauth/authorize"
	DefaultTokenURL     = "https://notify-bot.line.me/oauth/token"
	DefaultNotifyURL    = "https://notify-api.line.me/api/notify"
)

const (
	DefaultAddr        = ":8080"
	DefaultBaseURL     = "http://localhost:8080"
	DefaultSessionTTL  = 30 * time.Minute
	DefaultHTTPTimeout = 30 * time.Second
	DefaultTaskPayload = "Hello, World!"
	CallbackPath       = "/auth/line-notify/callback"
)

// FirestoreConfig locates the document holding the relay token
type FirestoreConfig struct {
	Project       string `json:"project"`
	Database      string `json:"database,omitempty"`
	Collection    string `json:"collection,omitempty"`
	EncryptionKey Secret `json:"encryptionKey"`
}

// RedisConfig locates the key holding the relay token
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password Secret `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`
}

// NotifyRelayConfig configures the LINE Notify OAuth relay
type NotifyRelayConfig struct {
	Addr    string `json:"addr"`
	BaseURL string `json:"baseURL"`

	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`

	// AccessToken is used by /notify when no token has been obtained yet
	AccessToken Secret `json:"accessToken,omitempty"`

	// SessionSecret signs session cookies; a random per-process key is used when empty
	SessionSecret Secret        `json:"sessionSecret,omitempty"`
	SessionTTL    time.Duration `json:"sessionTtl"`
	CookieSecure  bool          `json:"cookieSecure"`

	HTTPTimeout time.Duration `json:"httpTimeout"`

	AuthorizeURL string `json:"authorizeUrl"`
	TokenURL     string `json:"tokenUrl"`
	NotifyURL    string `json:"notifyUrl"`

	Storage   StorageKind      `json:"storage"`
	Firestore *FirestoreConfig `json:"firestore,omitempty"`
	Redis     *RedisConfig     `json:"redis,omitempty"`
}

// RedirectURI is the callback URL registered with LINE Notify
func (c *NotifyRelayConfig) RedirectURI() string {
	return c.BaseURL + CallbackPath
}

// TaskDispatcherConfig configures the Cloud Tasks trigger
type TaskDispatcherConfig struct {
	Addr      string        `json:"addr"`
	Project   string        `json:"project"`
	Location  string        `json:"location"`
	Queue     string        `json:"queue"`
	TargetURL string        `json:"targetUrl"`
	Payload   string        `json:"payload"`
	Delay     time.Duration `json:"delay"`

	// EmulatorHost points the client at a local Cloud Tasks emulator (host:port)
	EmulatorHost string `json:"emulatorHost,omitempty"`
}

// LineBotConfig configures the Messaging API bot
type LineBotConfig struct {
	Addr          string `json:"addr"`
	ChannelSecret Secret `json:"channelSecret"`
	ChannelToken  Secret `json:"channelToken"`

	// UserID receives messages posted to /sendLineMessage
	UserID string `json:"userId,omitempty"`

	// APIEndpoint overrides the Messaging API base URL
	APIEndpoint string `json:"apiEndpoint,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version   string `json:"version"`
	LogLevel  string `json:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty"`

	NotifyRelay    *NotifyRelayConfig    `json:"notifyRelay,omitempty"`
	TaskDispatcher *TaskDispatcherConfig `json:"taskDispatcher,omitempty"`
	LineBot        *LineBotConfig        `json:"lineBot,omitempty"`
}
