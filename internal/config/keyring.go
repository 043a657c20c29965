package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "gitlab2graph"

	// KeyringTokenItem is the key for the GitLab access token
	KeyringTokenItem = "gitlab-token"

	// KeyringPasswordItem is the key for the Neo4j password
	KeyringPasswordItem = "neo4j-password"
)

// KeyringManager handles secure credential storage in the OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SetGitLabToken stores the GitLab token in the OS keychain
// This uses OS-level encryption:
// - macOS: Keychain Access.app → "gitlab2graph" → "gitlab-token"
// - Windows: Credential Manager → "gitlab2graph"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) SetGitLabToken(token string) error {
	if token == "" {
		return fmt.Errorf("gitlab token cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringTokenItem, token); err != nil {
		km.logger.Error("failed to save gitlab token to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("gitlab token saved to keychain", "service", KeyringService)
	return nil
}

// GitLabToken retrieves the GitLab token from the OS keychain
func (km *KeyringManager) GitLabToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringTokenItem)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get gitlab token from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("gitlab token retrieved from keychain")
	return token, nil
}

// DeleteGitLabToken removes the GitLab token from the OS keychain
func (km *KeyringManager) DeleteGitLabToken() error {
	err := keyring.Delete(KeyringService, KeyringTokenItem)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete gitlab token from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("gitlab token deleted from keychain")
	return nil
}

// SetNeo4jPassword stores the Neo4j password in the OS keychain
func (km *KeyringManager) SetNeo4jPassword(password string) error {
	if password == "" {
		return fmt.Errorf("neo4j password cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringPasswordItem, password); err != nil {
		km.logger.Error("failed to save neo4j password to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("neo4j password saved to keychain", "service", KeyringService)
	return nil
}

// Neo4jPassword retrieves the Neo4j password from the OS keychain
func (km *KeyringManager) Neo4jPassword() (string, error) {
	password, err := keyring.Get(KeyringService, KeyringPasswordItem)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get neo4j password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("neo4j password retrieved from keychain")
	return password, nil
}

// DeleteNeo4jPassword removes the Neo4j password from the OS keychain
func (km *KeyringManager) DeleteNeo4jPassword() error {
	err := keyring.Delete(KeyringService, KeyringPasswordItem)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete neo4j password from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.Info("neo4j password deleted from keychain")
	return nil
}

// IsAvailable checks if the OS keychain is available
// Returns false on headless systems (CI/CD) where no keychain runs
func (km *KeyringManager) IsAvailable() bool {
	// Try to access keyring with a test operation
	_, err := keyring.Get(KeyringService, "test-availability")

	// If error is "not found", keychain is available
	// If error is something else, keychain may not be available
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}

	return true
}

// MaskSecret masks a secret for display
// Shows first 7 chars and last 4 chars: "glpat-a...bcd1"
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:7], secret[len(secret)-4:])
}
