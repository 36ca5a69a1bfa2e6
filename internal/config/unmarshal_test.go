package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValue(t *testing.T) {
	t.Setenv("LINE_RELAY_TEST_VALUE", "from-env")
	t.Setenv("LINE_RELAY_TEST_QUOTED", `"quoted"`)
	t.Setenv("LINE_RELAY_TEST_EMPTY", "")

	tests := []struct {
		name        string
		raw         string
		want        string
		expectError string
	}{
		{name: "plain string", raw: `"hello"`, want: "hello"},
		{name: "env ref", raw: `{"$env": "LINE_RELAY_TEST_VALUE"}`, want: "from-env"},
		{name: "quotes stripped", raw: `{"$env": "LINE_RELAY_TEST_QUOTED"}`, want: "quoted"},
		{name: "default used when empty", raw: `{"$env": "LINE_RELAY_TEST_EMPTY", "default": "fallback"}`, want: "fallback"},
		{name: "env wins over default", raw: `{"$env": "LINE_RELAY_TEST_VALUE", "default": "fallback"}`, want: "from-env"},
		{name: "empty default", raw: `{"$env": "LINE_RELAY_TEST_EMPTY", "default": ""}`, want: ""},
		{name: "unset without default", raw: `{"$env": "LINE_RELAY_TEST_EMPTY"}`, expectError: "environment variable LINE_RELAY_TEST_EMPTY not set"},
		{name: "unknown ref", raw: `{"$file": "/etc/passwd"}`, expectError: "unknown reference type"},
		{name: "number", raw: `42`, expectError: "must be string or reference object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigValue(json.RawMessage(tt.raw))
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "***", s.String())
	assert.Equal(t, "***", fmt.Sprintf("%v", s))

	data, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token": "***"}`, string(data))

	assert.Equal(t, "", Secret("").String())
}

func TestUnmarshal_FirestoreAndRedis(t *testing.T) {
	t.Setenv("LINE_RELAY_TEST_KEY", "test-encryption-key-32-bytes-ok!")
	t.Setenv("LINE_RELAY_TEST_REDIS_PW", "pw")

	var relay NotifyRelayConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"clientId": "c",
		"clientSecret": "s",
		"storage": "firestore",
		"firestore": {"project": "p", "database": "db", "encryptionKey": {"$env": "LINE_RELAY_TEST_KEY"}},
		"redis": {"addr": "localhost:6379", "password": {"$env": "LINE_RELAY_TEST_REDIS_PW"}, "db": 2}
	}`), &relay))

	require.NotNil(t, relay.Firestore)
	assert.Equal(t, "p", relay.Firestore.Project)
	assert.Equal(t, "db", relay.Firestore.Database)
	assert.Equal(t, Secret("test-encryption-key-32-bytes-ok!"), relay.Firestore.EncryptionKey)

	require.NotNil(t, relay.Redis)
	assert.Equal(t, "localhost:6379", relay.Redis.Addr)
	assert.Equal(t, Secret("pw"), relay.Redis.Password)
	assert.Equal(t, 2, relay.Redis.DB)
}
