package config

import (
	"encoding/json"
	"fmt"
	"os"
)

func envRef(name string) map[string]string {
	return map[string]string{"$env": name}
}

func envRefDefault(name, def string) map[string]string {
	return map[string]string{"$env": name, "default": def}
}

// DefaultDocument is the starting config written by -config-init. Every
// secret comes from the environment, matching what the services read on
// Cloud Run. Each service only resolves its own section (LoadService).
func DefaultDocument() map[string]any {
	return map[string]any{
		"version":   SupportedVersion,
		"logFormat": "json",
		"notifyRelay": map[string]any{
			"addr":          envRefDefault("PORT", "8080"),
			"baseURL":       envRefDefault("PROTOCOL_HOST", DefaultBaseURL),
			"clientId":      envRef("CLIENT_ID"),
			"clientSecret":  envRef("CLIENT_SECRET"),
			"accessToken":   envRefDefault("ACCESS_TOKEN", ""),
			"sessionSecret": envRefDefault("SESSION_SECRET", ""),
			"sessionTtl":    DefaultSessionTTL.String(),
			"cookieSecure":  false,
			"storage":       string(StorageMemory),
		},
		"taskDispatcher": map[string]any{
			"addr":      envRefDefault("PORT", "8080"),
			"project":   envRef("GOOGLE_CLOUD_PROJECT"),
			"location":  "asia-northeast2",
			"queue":     "my-queue",
			"targetUrl": envRef("TASK_TARGET_URL"),
			"payload":   DefaultTaskPayload,
			"delay":     "0s",
		},
		"lineBot": map[string]any{
			"addr":          envRefDefault("PORT", "8080"),
			"channelSecret": envRef("CHANNEL_SECRET"),
			"channelToken":  envRef("CHANNEL_TOKEN"),
			"userId":        envRefDefault("USER_ID", ""),
		},
	}
}

// GenerateDefault writes DefaultDocument to path
func GenerateDefault(path string) error {
	data, err := json.MarshalIndent(DefaultDocument(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
