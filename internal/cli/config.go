package cli

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds CLI configuration
type Config struct {
	// RosterPath is the accounts file used by the file backend
	RosterPath string
	// StorageType selects the roster backend: "file" or "redis"
	StorageType string
	// RedisURL is the Redis connection URL (used when StorageType is "redis")
	RedisURL string

	// LegacyURL is the base URL of the legacy authentication server
	LegacyURL string

	// OAuthClientID identifies this launcher to the modern identity provider
	OAuthClientID string
	// OAuthAuthURL is the provider's authorization endpoint
	OAuthAuthURL string
	// OAuthTokenURL is the provider's token endpoint
	OAuthTokenURL string
	// OAuthProfileURL is the provider's profile endpoint
	OAuthProfileURL string
	// CallbackPort is the local port for the OAuth redirect listener
	CallbackPort int

	// Yes skips confirmation prompts
	Yes bool
	// Verbose enables debug logging
	Verbose bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		RosterPath:      getEnvOrDefault("LAUNCHER_ROSTER", defaultRosterPath()),
		StorageType:     getEnvOrDefault("LAUNCHER_STORAGE", "file"),
		RedisURL:        os.Getenv("LAUNCHER_REDIS_URL"),
		LegacyURL:       getEnvOrDefault("LAUNCHER_LEGACY_URL", "https://authserver.mojang.com"),
		OAuthClientID:   os.Getenv("LAUNCHER_OAUTH_CLIENT_ID"),
		OAuthAuthURL:    os.Getenv("LAUNCHER_OAUTH_AUTH_URL"),
		OAuthTokenURL:   os.Getenv("LAUNCHER_OAUTH_TOKEN_URL"),
		OAuthProfileURL: os.Getenv("LAUNCHER_OAUTH_PROFILE_URL"),
		CallbackPort:    getEnvIntOrDefault("LAUNCHER_CALLBACK_PORT", 28562),
	}
}

func defaultRosterPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".packsmith", "accounts.json")
	}
	return filepath.Join(home, ".packsmith", "accounts.json")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
