package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes is ValidateFile on an in-memory document
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", SupportedVersion)
	} else if version != SupportedVersion {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersion)
	}

	sections := 0
	if relay, ok := section(rawConfig, "notifyRelay", result); ok {
		sections++
		validateRelayStructure(relay, result)
	}
	if dispatcher, ok := section(rawConfig, "taskDispatcher", result); ok {
		sections++
		validateDispatcherStructure(dispatcher, result)
	}
	if bot, ok := section(rawConfig, "lineBot", result); ok {
		sections++
		validateBotStructure(bot, result)
	}
	if sections == 0 {
		result.addError("", "at least one of notifyRelay, taskDispatcher or lineBot must be configured")
	}

	return result
}

func section(rawConfig map[string]any, name string, result *ValidationResult) (map[string]any, bool) {
	v, present := rawConfig[name]
	if !present || v == nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		result.addError(name, "%s must be an object", name)
		return nil, false
	}
	return m, true
}

func validateRelayStructure(relay map[string]any, result *ValidationResult) {
	for _, field := range []string{"clientId", "clientSecret"} {
		if _, ok := relay[field]; !ok {
			result.addError("notifyRelay."+field, "%s is required", field)
		}
	}
	for _, field := range []string{"clientSecret", "accessToken", "sessionSecret"} {
		if v, ok := relay[field]; ok {
			validateSecretReference(v, field, "notifyRelay."+field, result)
		}
	}
	validateDurationField(relay, "sessionTtl", "notifyRelay", result)
	validateDurationField(relay, "httpTimeout", "notifyRelay", result)

	if _, ok := relay["sessionSecret"]; !ok {
		result.addWarning("notifyRelay.sessionSecret", "sessionSecret is not set; sessions will not survive a restart")
	}

	storage, _ := relay["storage"].(string)
	switch StorageKind(storage) {
	case "", StorageMemory:
	case StorageFirestore:
		fs, ok := relay["firestore"].(map[string]any)
		if !ok {
			result.addError("notifyRelay.firestore", "firestore section is required when using firestore storage")
			return
		}
		if _, ok := fs["project"]; !ok {
			result.addError("notifyRelay.firestore.project", "project is required")
		}
		if key, ok := fs["encryptionKey"]; ok {
			validateSecretReference(key, "encryptionKey", "notifyRelay.firestore.encryptionKey", result)
		} else {
			result.addError("notifyRelay.firestore.encryptionKey", "encryptionKey is required")
		}
	case StorageRedis:
		rd, ok := relay["redis"].(map[string]any)
		if !ok {
			result.addError("notifyRelay.redis", "redis section is required when using redis storage")
			return
		}
		if _, ok := rd["addr"]; !ok {
			result.addError("notifyRelay.redis.addr", "addr is required")
		}
		if pw, ok := rd["password"]; ok {
			validateSecretReference(pw, "password", "notifyRelay.redis.password", result)
		}
	default:
		result.addError("notifyRelay.storage", "invalid storage '%s' - must be one of memory, firestore, redis", storage)
	}
}

func validateDispatcherStructure(dispatcher map[string]any, result *ValidationResult) {
	for _, field := range []string{"project", "location", "queue", "targetUrl"} {
		if _, ok := dispatcher[field]; !ok {
			result.addError("taskDispatcher."+field, "%s is required", field)
		}
	}
	if d, ok := validateDurationField(dispatcher, "delay", "taskDispatcher", result); ok && d < 0 {
		result.addError("taskDispatcher.delay", "delay cannot be negative")
	}
}

func validateBotStructure(bot map[string]any, result *ValidationResult) {
	for _, field := range []string{"channelSecret", "channelToken"} {
		v, ok := bot[field]
		if !ok {
			result.addError("lineBot."+field, "%s is required", field)
			continue
		}
		validateSecretReference(v, field, "lineBot."+field, result)
	}
	if _, ok := bot["userId"]; !ok {
		result.addWarning("lineBot.userId", "userId is not set; /sendLineMessage will not push anything")
	}
}

func validateDurationField(m map[string]any, field, prefix string, result *ValidationResult) (time.Duration, bool) {
	v, ok := m[field]
	if !ok {
		return 0, false
	}
	s, ok := v.(string)
	if !ok {
		result.addError(prefix+"."+field, "%s must be a duration string like \"30m\"", field)
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		result.addError(prefix+"."+field, "invalid %s '%s': %v", field, s, err)
		return 0, false
	}
	return d, true
}

// validateSecretReference requires secrets to come from the environment
func validateSecretReference(value any, fieldName, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			result.addError(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1])
			return
		}
		result.addError(path, "%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName)
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			result.addError(path, "%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName)
		}
	default:
		result.addError(path, "%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value)
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
