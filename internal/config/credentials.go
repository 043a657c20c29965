package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// TokenSettingsURL is where GitLab personal access tokens are managed.
const TokenSettingsURL = "https://gitlab.com/-/user_settings/personal_access_tokens"

// CredentialManager resolves secrets with a priority chain
// Priority: Environment Variables → Keychain → Credentials File → Interactive Prompt
type CredentialManager struct {
	keyring    *KeyringManager
	configPath string
}

// Credentials holds the secrets that may be stored outside the INI file
type Credentials struct {
	GitLabToken   string `yaml:"gitlab_token"`
	Neo4jPassword string `yaml:"neo4j_password"`
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager() *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	configPath := filepath.Join(homeDir, ".config", "gitlab2graph", "credentials.yaml")

	return &CredentialManager{
		keyring:    NewKeyringManager(),
		configPath: configPath,
	}
}

// GitLabToken retrieves the GitLab access token using the priority chain
func (cm *CredentialManager) GitLabToken() (string, error) {
	// 1. Environment variable (highest priority)
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		return token, nil
	}

	// 2. Keychain (macOS/Linux/Windows)
	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GitLabToken(); err == nil && token != "" {
			return token, nil
		}
	}

	// 3. Credentials file (~/.config/gitlab2graph/credentials.yaml)
	if creds, err := cm.loadCredentialsFile(); err == nil && creds.GitLabToken != "" {
		return creds.GitLabToken, nil
	}

	// 4. Interactive prompt (terminal only, never in CI)
	if isInteractive() && !isCI() {
		fmt.Println("\n⚠️  GitLab token not found.")
		fmt.Printf("   Create one at: %s\n", TokenSettingsURL)
		fmt.Println("   Required scope: read_api")
		fmt.Println()
		return cm.promptForToken()
	}

	// Not found anywhere
	return "", errors.ConfigurationErrorf(
		"GitLab token not found. Set it via:\n"+
			"  1. Config file: token = <value> in the [GITLAB] section\n"+
			"  2. Environment variable: export GITLAB_TOKEN=glpat-...\n"+
			"  3. Run: gitlab2graph configure (to set up keychain)\n"+
			"  4. Credentials file: %s", cm.configPath)
}

// Neo4jPassword retrieves the Neo4j password using the priority chain
func (cm *CredentialManager) Neo4jPassword() (string, error) {
	// 1. Environment variable (highest priority)
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		return password, nil
	}

	// 2. Keychain (macOS/Linux/Windows)
	if cm.keyring.IsAvailable() {
		if password, err := cm.keyring.Neo4jPassword(); err == nil && password != "" {
			return password, nil
		}
	}

	// 3. Credentials file
	if creds, err := cm.loadCredentialsFile(); err == nil && creds.Neo4jPassword != "" {
		return creds.Neo4jPassword, nil
	}

	// 4. Interactive prompt (terminal only, never in CI)
	if isInteractive() && !isCI() {
		fmt.Println("\n⚠️  Neo4j password not found.")
		fmt.Print("Enter Neo4j password: ")

		password, err := cm.readSecret()
		if err != nil {
			return "", err
		}
		if password != "" {
			return password, nil
		}
	}

	// Not found anywhere
	return "", errors.ConfigurationErrorf(
		"Neo4j password not found. Set it via:\n"+
			"  1. Config file: password = <value> in the [NEO4J] section\n"+
			"  2. Environment variable: export NEO4J_PASSWORD=...\n"+
			"  3. Run: gitlab2graph configure (to set up keychain)\n"+
			"  4. Credentials file: %s", cm.configPath)
}

// SaveCredentials saves secrets to the keychain (preferred) or the
// credentials file (fallback on headless systems)
func (cm *CredentialManager) SaveCredentials(creds Credentials) error {
	// Try keychain first
	if cm.keyring.IsAvailable() {
		if creds.GitLabToken != "" {
			if err := cm.keyring.SetGitLabToken(creds.GitLabToken); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfiguration, errors.SeverityFatal,
					"failed to save GitLab token to keychain")
			}
		}
		if creds.Neo4jPassword != "" {
			if err := cm.keyring.SetNeo4jPassword(creds.Neo4jPassword); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfiguration, errors.SeverityFatal,
					"failed to save Neo4j password to keychain")
			}
		}
		return nil
	}

	// Fallback: credentials file
	return cm.saveCredentialsFile(creds)
}

// HasGitLabToken reports whether a token is reachable without prompting
func (cm *CredentialManager) HasGitLabToken() bool {
	if os.Getenv("GITLAB_TOKEN") != "" {
		return true
	}
	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GitLabToken(); err == nil && token != "" {
			return true
		}
	}
	if creds, err := cm.loadCredentialsFile(); err == nil && creds.GitLabToken != "" {
		return true
	}
	return false
}

// HasNeo4jPassword reports whether a password is reachable without prompting
func (cm *CredentialManager) HasNeo4jPassword() bool {
	if os.Getenv("NEO4J_PASSWORD") != "" {
		return true
	}
	if cm.keyring.IsAvailable() {
		if password, err := cm.keyring.Neo4jPassword(); err == nil && password != "" {
			return true
		}
	}
	if creds, err := cm.loadCredentialsFile(); err == nil && creds.Neo4jPassword != "" {
		return true
	}
	return false
}

// loadCredentialsFile loads secrets from the credentials file
func (cm *CredentialManager) loadCredentialsFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// saveCredentialsFile saves secrets to the credentials file
func (cm *CredentialManager) saveCredentialsFile(creds Credentials) error {
	// Ensure directory exists
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Merge with whatever is already stored so a partial save does not
	// wipe the other secret
	if existing, err := cm.loadCredentialsFile(); err == nil {
		if creds.GitLabToken == "" {
			creds.GitLabToken = existing.GitLabToken
		}
		if creds.Neo4jPassword == "" {
			creds.Neo4jPassword = existing.Neo4jPassword
		}
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	// Write file with restrictive permissions (user-only read/write)
	return os.WriteFile(cm.configPath, data, 0600)
}

// promptForToken prompts the user for a GitLab token and stores it
func (cm *CredentialManager) promptForToken() (string, error) {
	fmt.Print("Enter GitLab token: ")
	token, err := cm.readSecret()
	if err != nil {
		return "", err
	}

	if token == "" {
		return "", errors.ConfigurationError("GitLab token is required")
	}

	// Personal access tokens start with glpat-, but OAuth and older
	// tokens do not, so only warn on unexpected prefixes
	if !strings.HasPrefix(token, "glpat-") {
		fmt.Println("⚠️  Token does not look like a personal access token (expected glpat- prefix)")
	}

	// Save to keychain if available
	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SetGitLabToken(token); err == nil {
			fmt.Println("✓ Saved to keychain")
		}
	} else {
		// Save to credentials file as fallback
		if err := cm.saveCredentialsFile(Credentials{GitLabToken: token}); err == nil {
			fmt.Printf("✓ Saved to %s\n", cm.configPath)
		}
	}

	return token, nil
}

// readSecret reads a password/token from stdin without echoing
func (cm *CredentialManager) readSecret() (string, error) {
	// Try to read from terminal (supports password masking)
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Fallback: read from stdin (piped input)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetConfigPath returns the path to the credentials file
func (cm *CredentialManager) GetConfigPath() string {
	return cm.configPath
}

// Keyring returns the underlying keyring manager
func (cm *CredentialManager) Keyring() *KeyringManager {
	return cm.keyring
}

// isInteractive returns true if stdin is a terminal (not piped)
func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// isCI detects if running in a CI/CD environment where prompting
// would hang the job
func isCI() bool {
	ciEnvVars := []string{
		"CI",
		"GITLAB_CI",
		"GITHUB_ACTIONS",
		"JENKINS_URL",
		"BUILDKITE",
		"TF_BUILD",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}

	return false
}
