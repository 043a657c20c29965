package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads environment variables from .env files so that
// GITLAB_TOKEN, NEO4J_PASSWORD and LOGLEVEL can live outside the INI
// file. Files earlier in the list win because godotenv never overrides
// variables that are already set.
func LoadEnvFiles() {
	candidates := []string{
		".env.local",
		".env",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "gitlab2graph", ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			// Ignore load errors, a malformed .env should not stop a run
			_ = godotenv.Load(path)
		}
	}
}

// GetString returns an environment variable or a default value
func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
