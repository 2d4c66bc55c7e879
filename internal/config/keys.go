package config

import "os"

// SecretSource represents where a secret comes from.
type SecretSource string

const (
	SourceEnv    SecretSource = "env"
	SourceConfig SecretSource = "config"
	SourceNone   SecretSource = "none"
)

// SecretStatus represents the status of a configured secret.
type SecretStatus struct {
	Name   string       `json:"name"`
	Source SecretSource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckSecrets returns the status of every secret the service can use.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret("Backend API Key", cfg.Backend.APIKey, "STACKSWAP_BACKEND_API_KEY"),
		checkSecret("Redis Password", cfg.Session.RedisPassword, "STACKSWAP_SESSION_REDIS_PASSWORD"),
	}
}

// checkSecret checks if a secret is set and where it came from.
func checkSecret(name, value, envVar string) SecretStatus {
	status := SecretStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SourceEnv
		} else {
			status.Source = SourceConfig
		}
		status.Masked = maskSecret(value)
	} else {
		status.Source = SourceNone
	}

	return status
}

// maskSecret masks a secret for display, showing only first 3 and last 3 chars.
func maskSecret(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
