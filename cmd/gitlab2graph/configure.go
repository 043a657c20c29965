package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dlr-sc/gitlab2graph/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive credential setup (with OS keychain support)",
	Long: `Walk through credential setup step-by-step.

Secrets never end up in config files: the GitLab token and the Neo4j
password go to the OS keychain when one is available, with a user-only
credentials file as fallback. Config files describe the connection
(URL, hostname, project) and leave token/password empty.

This will configure:
1. GitLab personal access token (read_api scope)
2. Neo4j password
3. Optionally a skeleton config file to start from`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("🔧 gitlab2graph Configuration Wizard")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	cm := config.NewCredentialManager()

	if !cm.Keyring().IsAvailable() {
		fmt.Println("⚠️  OS keychain not available (headless system or Linux without libsecret)")
		fmt.Printf("   Will store secrets in %s instead.\n", cm.GetConfigPath())
		fmt.Println()
	}

	if err := configureGitLabToken(reader, cm); err != nil {
		return err
	}
	if err := configureNeo4jPassword(reader, cm); err != nil {
		return err
	}
	if err := offerExampleConfig(reader); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("✅ Configuration complete. Try it with: gitlab2graph validate <config.ini>")
	return nil
}

func configureGitLabToken(reader *bufio.Reader, cm *config.CredentialManager) error {
	fmt.Println("Step 1/3: GitLab Personal Access Token")
	fmt.Println()

	if cm.HasGitLabToken() {
		if token, err := cm.GitLabToken(); err == nil {
			fmt.Printf("Current: %s\n", config.MaskSecret(token))
		}
		fmt.Print("Keep existing token? (Y/n): ")
		if confirm(reader, true) {
			return nil
		}
	} else {
		// The instance URL is per-project configuration and stays in
		// the INI file, it is only needed here to point at the right
		// token settings page.
		fmt.Print("GitLab instance URL [https://gitlab.com]: ")
		instance, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		tokenURL := config.TokenSettingsURL
		if instance = strings.TrimSpace(instance); instance != "" {
			tokenURL = strings.TrimRight(instance, "/") + "/-/user_settings/personal_access_tokens"
		}

		fmt.Println("The token needs the read_api scope.")
		fmt.Printf("Create one at: %s\n", tokenURL)
		fmt.Print("Open that page in your browser? (y/N): ")
		if confirm(reader, false) {
			if err := browser.OpenURL(tokenURL); err != nil {
				fmt.Printf("⚠️  Could not open browser: %v\n", err)
			}
		}
		fmt.Println()
	}

	fmt.Print("Enter your GitLab token (input hidden): ")
	token, err := readHiddenLine(reader)
	if err != nil {
		return err
	}
	if token == "" {
		fmt.Println("⚠️  Nothing entered, skipping")
		return nil
	}
	if !strings.HasPrefix(token, "glpat-") {
		fmt.Println("⚠️  Token does not look like a personal access token (glpat- prefix)")
	}

	if err := cm.SaveCredentials(config.Credentials{GitLabToken: token}); err != nil {
		return err
	}
	reportSaved(cm, "Token")
	return nil
}

func configureNeo4jPassword(reader *bufio.Reader, cm *config.CredentialManager) error {
	fmt.Println()
	fmt.Println("Step 2/3: Neo4j Password")
	fmt.Println()

	if cm.HasNeo4jPassword() {
		if password, err := cm.Neo4jPassword(); err == nil {
			fmt.Printf("Current: %s\n", config.MaskSecret(password))
		}
		fmt.Print("Keep existing password? (Y/n): ")
		if confirm(reader, true) {
			return nil
		}
	}

	fmt.Print("Enter the Neo4j password (input hidden): ")
	password, err := readHiddenLine(reader)
	if err != nil {
		return err
	}
	if password == "" {
		fmt.Println("⚠️  Nothing entered, skipping")
		return nil
	}

	if err := cm.SaveCredentials(config.Credentials{Neo4jPassword: password}); err != nil {
		return err
	}
	reportSaved(cm, "Password")
	return nil
}

func offerExampleConfig(reader *bufio.Reader) error {
	fmt.Println()
	fmt.Println("Step 3/3: Config File")
	fmt.Println()

	target := filepath.Join("configurations", "example.ini")
	fmt.Printf("Write a skeleton config to %s? (y/N): ", target)
	if !confirm(reader, false) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if err := config.WriteExample(target); err != nil {
		fmt.Printf("⚠️  %v\n", err)
		return nil
	}
	fmt.Printf("✅ Wrote %s\n", target)
	return nil
}

func reportSaved(cm *config.CredentialManager, what string) {
	if cm.Keyring().IsAvailable() {
		fmt.Printf("✅ %s saved to OS keychain (secure)\n", what)
	} else {
		fmt.Printf("✅ %s saved to %s\n", what, cm.GetConfigPath())
	}
}

// confirm reads a yes/no answer, empty input keeps the default.
func confirm(reader *bufio.Reader, def bool) bool {
	response, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

// readHiddenLine reads a secret without echo when stdin is a terminal,
// falling back to a plain read when input is piped in.
func readHiddenLine(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	response, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}
