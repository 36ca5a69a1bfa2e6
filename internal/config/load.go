package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/line-relay/internal/log"
)

// SupportedVersion is the only config file version this build understands
const SupportedVersion = "v1"

// Load reads the config file, resolves env references, fills defaults and validates
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read
func Parse(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if config.Version == "" {
		return Config{}, fmt.Errorf("config version is required")
	}
	if config.Version != SupportedVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", config.Version)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// sectionKeys maps each service to its config section
var sectionKeys = map[Service]string{
	ServiceNotifyRelay:    "notifyRelay",
	ServiceTaskDispatcher: "taskDispatcher",
	ServiceLineBot:        "lineBot",
}

// LoadService is Load restricted to one service's section. The other
// sections are dropped before env references are resolved, so a service
// never needs the environment of the services deployed next to it.
func LoadService(path string, service Service) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseService(data, service)
}

// ParseService is LoadService without the file read
func ParseService(data []byte, service Service) (Config, error) {
	key, ok := sectionKeys[service]
	if !ok {
		return Config{}, fmt.Errorf("unknown service: %s", service)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if section, ok := raw[key]; !ok || string(section) == "null" {
		return Config{}, fmt.Errorf("%s section is required to run %s", key, service)
	}
	for _, other := range sectionKeys {
		if other != key {
			delete(raw, other)
		}
	}

	trimmed, err := json.Marshal(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return Parse(trimmed)
}

// normalizeAddr accepts a bare port (as Cloud Run's PORT) or a host:port
func normalizeAddr(addr string) string {
	switch {
	case addr == "":
		return DefaultAddr
	case !strings.Contains(addr, ":"):
		return ":" + addr
	default:
		return addr
	}
}

func applyDefaults(config *Config) {
	if r := config.NotifyRelay; r != nil {
		r.Addr = normalizeAddr(r.Addr)
		if r.BaseURL == "" {
			r.BaseURL = DefaultBaseURL
		}
		r.BaseURL = strings.TrimSuffix(r.BaseURL, "/")
		if r.SessionTTL == 0 {
			r.SessionTTL = DefaultSessionTTL
		}
		if r.HTTPTimeout == 0 {
			r.HTTPTimeout = DefaultHTTPTimeout
		}
		if r.AuthorizeURL == "" {
			r.AuthorizeURL = DefaultAuthorizeURL
		}
		if r.TokenURL == "" {
			r.TokenURL = DefaultTokenURL
		}
		if r.NotifyURL == "" {
			r.NotifyURL = DefaultNotifyURL
		}
		if r.Storage == "" {
			r.Storage = StorageMemory
		}
		if r.Firestore != nil && r.Firestore.Collection == "" {
			r.Firestore.Collection = "line_notify_tokens"
		}
		if r.Redis != nil && r.Redis.Key == "" {
			r.Redis.Key = "line-relay:access-token"
		}
	}

	if d := config.TaskDispatcher; d != nil {
		d.Addr = normalizeAddr(d.Addr)
		if d.Payload == "" {
			d.Payload = DefaultTaskPayload
		}
	}

	if b := config.LineBot; b != nil {
		b.Addr = normalizeAddr(b.Addr)
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.NotifyRelay == nil && config.TaskDispatcher == nil && config.LineBot == nil {
		return fmt.Errorf("at least one of notifyRelay, taskDispatcher or lineBot must be configured")
	}

	var errs []error
	if r := config.NotifyRelay; r != nil {
		if err := validateNotifyRelay(r); err != nil {
			errs = append(errs, fmt.Errorf("notifyRelay: %w", err))
		}
	}
	if d := config.TaskDispatcher; d != nil {
		if err := validateTaskDispatcher(d); err != nil {
			errs = append(errs, fmt.Errorf("taskDispatcher: %w", err))
		}
	}
	if b := config.LineBot; b != nil {
		if err := validateLineBot(b); err != nil {
			errs = append(errs, fmt.Errorf("lineBot: %w", err))
		}
	}
	return errors.Join(errs...)
}

func validateNotifyRelay(r *NotifyRelayConfig) error {
	if err := validateURL("baseURL", r.BaseURL); err != nil {
		return err
	}
	if r.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if r.ClientSecret == "" {
		return fmt.Errorf("clientSecret is required")
	}
	if r.SessionTTL < 0 {
		return fmt.Errorf("sessionTtl cannot be negative")
	}
	if r.HTTPTimeout < 0 {
		return fmt.Errorf("httpTimeout cannot be negative")
	}
	for name, u := range map[string]string{
		"authorizeUrl": r.AuthorizeURL,
		"tokenUrl":     r.TokenURL,
		"notifyUrl":    r.NotifyURL,
	} {
		if err := validateURL(name, u); err != nil {
			return err
		}
	}
	if r.SessionSecret == "" {
		log.LogWarn("notifyRelay.sessionSecret is not set; sessions will not survive a restart")
	}

	switch r.Storage {
	case StorageMemory:
	case StorageFirestore:
		if r.Firestore == nil || r.Firestore.Project == "" {
			return fmt.Errorf("firestore.project is required when using firestore storage")
		}
		if len(r.Firestore.EncryptionKey) != 32 {
			return fmt.Errorf("firestore.encryptionKey must be exactly 32 characters (got %d)", len(r.Firestore.EncryptionKey))
		}
	case StorageRedis:
		if r.Redis == nil || r.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when using redis storage")
		}
	default:
		return fmt.Errorf("invalid storage: %s", r.Storage)
	}
	return nil
}

func validateTaskDispatcher(d *TaskDispatcherConfig) error {
	if d.Project == "" {
		return fmt.Errorf("project is required")
	}
	if d.Location == "" {
		return fmt.Errorf("location is required")
	}
	if d.Queue == "" {
		return fmt.Errorf("queue is required")
	}
	if err := validateURL("targetUrl", d.TargetURL); err != nil {
		return err
	}
	if d.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	return nil
}

func validateLineBot(b *LineBotConfig) error {
	if b.ChannelSecret == "" {
		return fmt.Errorf("channelSecret is required")
	}
	if b.ChannelToken == "" {
		return fmt.Errorf("channelToken is required")
	}
	if b.APIEndpoint != "" {
		if err := validateURL("apiEndpoint", b.APIEndpoint); err != nil {
			return err
		}
	}
	if b.UserID == "" {
		log.LogWarn("lineBot.userId is not set; /sendLineMessage will not push anything")
	}
	return nil
}

func validateURL(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// RequireService checks that the section for service exists
func (c *Config) RequireService(service Service) error {
	switch service {
	case ServiceNotifyRelay:
		if c.NotifyRelay == nil {
			return fmt.Errorf("notifyRelay section is required to run %s", service)
		}
	case ServiceTaskDispatcher:
		if c.TaskDispatcher == nil {
			return fmt.Errorf("taskDispatcher section is required to run %s", service)
		}
	case ServiceLineBot:
		if c.LineBot == nil {
			return fmt.Errorf("lineBot section is required to run %s", service)
		}
	default:
		return fmt.Errorf("unknown service: %s", service)
	}
	return nil
}
