package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ParseConfigValue parses a JSON value that is either a plain string or an
// environment reference: {"$env": "NAME"} or {"$env": "NAME", "default": "value"}.
//
// References are resolved at load time. A reference without a default fails
// when the variable is unset or empty; with a default, the default is used.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		if def, hasDefault := ref["default"]; hasDefault {
			return def, nil
		}
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}

	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// resolveInto parses raw into dst when the field was present in the file
func resolveInto[T ~string](name string, raw json.RawMessage, dst *T) error {
	if raw == nil {
		return nil
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = T(value)
	return nil
}

func parseDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// UnmarshalJSON implements custom unmarshaling for NotifyRelayConfig
func (c *NotifyRelayConfig) UnmarshalJSON(data []byte) error {
	type rawRelay struct {
		Addr          json.RawMessage  `json:"addr"`
		BaseURL       json.RawMessage  `json:"baseURL"`
		ClientID      json.RawMessage  `json:"clientId"`
		ClientSecret  json.RawMessage  `json:"clientSecret"`
		AccessToken   json.RawMessage  `json:"accessToken"`
		SessionSecret json.RawMessage  `json:"sessionSecret"`
		SessionTTL    string           `json:"sessionTtl"`
		CookieSecure  bool             `json:"cookieSecure"`
		HTTPTimeout   string           `json:"httpTimeout"`
		AuthorizeURL  string           `json:"authorizeUrl"`
		TokenURL      string           `json:"tokenUrl"`
		NotifyURL     string           `json:"notifyUrl"`
		Storage       StorageKind      `json:"storage"`
		Firestore     *FirestoreConfig `json:"firestore"`
		Redis         *RedisConfig     `json:"redis"`
	}

	var raw rawRelay
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.CookieSecure = raw.CookieSecure
	c.AuthorizeURL = raw.AuthorizeURL
	c.TokenURL = raw.TokenURL
	c.NotifyURL = raw.NotifyURL
	c.Storage = raw.Storage
	c.Firestore = raw.Firestore
	c.Redis = raw.Redis

	if err := parseDuration("sessionTtl", raw.SessionTTL, &c.SessionTTL); err != nil {
		return err
	}
	if err := parseDuration("httpTimeout", raw.HTTPTimeout, &c.HTTPTimeout); err != nil {
		return err
	}

	if err := resolveInto("addr", raw.Addr, &c.Addr); err != nil {
		return err
	}
	if err := resolveInto("baseURL", raw.BaseURL, &c.BaseURL); err != nil {
		return err
	}
	if err := resolveInto("clientId", raw.ClientID, &c.ClientID); err != nil {
		return err
	}
	if err := resolveInto("clientSecret", raw.ClientSecret, &c.ClientSecret); err != nil {
		return err
	}
	if err := resolveInto("accessToken", raw.AccessToken, &c.AccessToken); err != nil {
		return err
	}
	return resolveInto("sessionSecret", raw.SessionSecret, &c.SessionSecret)
}

// UnmarshalJSON implements custom unmarshaling for FirestoreConfig
func (f *FirestoreConfig) UnmarshalJSON(data []byte) error {
	type rawFirestore struct {
		Project       json.RawMessage `json:"project"`
		Database      string          `json:"database"`
		Collection    string          `json:"collection"`
		EncryptionKey json.RawMessage `json:"encryptionKey"`
	}

	var raw rawFirestore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Database = raw.Database
	f.Collection = raw.Collection

	if err := resolveInto("firestore.project", raw.Project, &f.Project); err != nil {
		return err
	}
	return resolveInto("firestore.encryptionKey", raw.EncryptionKey, &f.EncryptionKey)
}

// UnmarshalJSON implements custom unmarshaling for RedisConfig
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	type rawRedis struct {
		Addr     json.RawMessage `json:"addr"`
		Password json.RawMessage `json:"password"`
		DB       int             `json:"db"`
		Key      string          `json:"key"`
	}

	var raw rawRedis
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.DB = raw.DB
	r.Key = raw.Key

	if err := resolveInto("redis.addr", raw.Addr, &r.Addr); err != nil {
		return err
	}
	return resolveInto("redis.password", raw.Password, &r.Password)
}

// UnmarshalJSON implements custom unmarshaling for TaskDispatcherConfig
func (c *TaskDispatcherConfig) UnmarshalJSON(data []byte) error {
	type rawDispatcher struct {
		Addr         json.RawMessage `json:"addr"`
		Project      json.RawMessage `json:"project"`
		Location     json.RawMessage `json:"location"`
		Queue        json.RawMessage `json:"queue"`
		TargetURL    json.RawMessage `json:"targetUrl"`
		Payload      json.RawMessage `json:"payload"`
		Delay        string          `json:"delay"`
		EmulatorHost json.RawMessage `json:"emulatorHost"`
	}

	var raw rawDispatcher
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := parseDuration("delay", raw.Delay, &c.Delay); err != nil {
		return err
	}

	for _, f := range []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"addr", raw.Addr, &c.Addr},
		{"project", raw.Project, &c.Project},
		{"location", raw.Location, &c.Location},
		{"queue", raw.Queue, &c.Queue},
		{"targetUrl", raw.TargetURL, &c.TargetURL},
		{"payload", raw.Payload, &c.Payload},
		{"emulatorHost", raw.EmulatorHost, &c.EmulatorHost},
	} {
		if err := resolveInto(f.name, f.raw, f.dst); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for LineBotConfig
func (c *LineBotConfig) UnmarshalJSON(data []byte) error {
	type rawBot struct {
		Addr          json.RawMessage `json:"addr"`
		ChannelSecret json.RawMessage `json:"channelSecret"`
		ChannelToken  json.RawMessage `json:"channelToken"`
		UserID        json.RawMessage `json:"userId"`
		APIEndpoint   string          `json:"apiEndpoint"`
	}

	var raw rawBot
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.APIEndpoint = raw.APIEndpoint

	if err := resolveInto("addr", raw.Addr, &c.Addr); err != nil {
		return err
	}
	if err := resolveInto("channelSecret", raw.ChannelSecret, &c.ChannelSecret); err != nil {
		return err
	}
	if err := resolveInto("channelToken", raw.ChannelToken, &c.ChannelToken); err != nil {
		return err
	}
	return resolveInto("userId", raw.UserID, &c.UserID)
}
