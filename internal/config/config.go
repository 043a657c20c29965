package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/spf13/viper"
)

// DefaultGitLabURL is used when the GITLAB section has no url key.
const DefaultGitLabURL = "https://gitlab.com"

// GitLabConfig holds the source connection settings.
type GitLabConfig struct {
	URL   string
	Token string
}

// Neo4jConfig holds the sink connection settings.
type Neo4jConfig struct {
	Hostname string
	Protocol string
	Port     string
	Database string
	User     string
	Password string
}

// ProjectConfig identifies the project to extract. ID accepts either a
// numeric project ID or a namespace/path string.
type ProjectConfig struct {
	ID string
}

// Config is the parsed and validated content of one INI config file.
type Config struct {
	GitLab  GitLabConfig
	Neo4j   Neo4jConfig
	Project ProjectConfig

	path string
	v    *viper.Viper
}

// requiredKeys lists every section and key that must be present in the
// INI file. Order is fixed so error messages are deterministic.
var requiredKeys = []struct {
	section string
	keys    []string
}{
	{"GITLAB", []string{"token"}},
	{"NEO4J", []string{"hostname", "protocol", "port", "db", "user", "password"}},
	{"PROJECT", []string{"project_id"}},
}

// secretKeys may be present with an empty value; they are resolved later
// through the credential chain instead of failing validation.
var secretKeys = map[string]bool{
	"gitlab.token":   true,
	"neo4j.password": true,
}

// Load reads and validates an INI config file. Every section and key in
// requiredKeys must exist; non-secret keys must also be non-empty.
// Secrets left empty are filled in by ResolveSecrets.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.ConfigurationErrorf("config file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, errors.SeverityFatal,
			fmt.Sprintf("failed to parse config file %s", path))
	}

	if err := checkRequired(v, path); err != nil {
		return nil, err
	}

	cfg := &Config{
		GitLab: GitLabConfig{
			URL:   v.GetString("gitlab.url"),
			Token: strings.TrimSpace(v.GetString("gitlab.token")),
		},
		Neo4j: Neo4jConfig{
			Hostname: v.GetString("neo4j.hostname"),
			Protocol: v.GetString("neo4j.protocol"),
			Port:     v.GetString("neo4j.port"),
			Database: v.GetString("neo4j.db"),
			User:     v.GetString("neo4j.user"),
			Password: strings.TrimSpace(v.GetString("neo4j.password")),
		},
		Project: ProjectConfig{
			ID: v.GetString("project.project_id"),
		},
		path: path,
		v:    v,
	}

	if cfg.GitLab.URL == "" {
		cfg.GitLab.URL = DefaultGitLabURL
	}

	return cfg, nil
}

// checkRequired verifies that all required sections and keys exist and
// that non-secret values are non-empty. All problems are collected into
// a single error so the user can fix the file in one pass.
func checkRequired(v *viper.Viper, path string) error {
	var problems []string

	for _, section := range requiredKeys {
		for _, key := range section.keys {
			full := strings.ToLower(section.section) + "." + key
			if !v.IsSet(full) {
				problems = append(problems, "missing key "+section.section+"."+key)
				continue
			}
			if !secretKeys[full] && strings.TrimSpace(v.GetString(full)) == "" {
				problems = append(problems, "empty value for "+section.section+"."+key)
			}
		}
	}

	if len(problems) > 0 {
		return errors.ConfigurationErrorf("invalid config file %s: %s", path, strings.Join(problems, "; "))
	}
	return nil
}

// ResolveSecrets fills in secrets that were left empty in the INI file,
// walking the credential chain (environment, keychain, credentials file,
// interactive prompt). A secret that stays empty is a fatal
// configuration error.
func (c *Config) ResolveSecrets(cm *CredentialManager) error {
	if c.GitLab.Token == "" {
		token, err := cm.GitLabToken()
		if err != nil {
			return err
		}
		c.GitLab.Token = token
	}

	if c.Neo4j.Password == "" {
		password, err := cm.Neo4jPassword()
		if err != nil {
			return err
		}
		c.Neo4j.Password = password
	}

	return nil
}

// Neo4jURI builds the bolt/neo4j connection URI from the NEO4J section.
func (c *Config) Neo4jURI() string {
	return c.Neo4j.Protocol + "://" + c.Neo4j.Hostname + ":" + c.Neo4j.Port
}

// Path returns the INI file this config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// PipelineAttribute reads an optional per-pipeline attribute from the
// config file, e.g. PipelineAttribute("ISSUE", "state") reads
// [ISSUE] state. Missing sections or keys yield an empty string.
func (c *Config) PipelineAttribute(pipeline, attribute string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(strings.ToLower(pipeline) + "." + strings.ToLower(attribute))
}

// exampleConfig is the skeleton written by WriteExample. Empty secrets
// are resolved through the credential chain at run time.
const exampleConfig = `[GITLAB]
# Base URL of the GitLab instance, defaults to https://gitlab.com
url = https://gitlab.com
# Personal access token with read_api scope, leave empty to use the
# credential chain (GITLAB_TOKEN, keychain, credentials file, prompt)
token =

[NEO4J]
hostname = localhost
protocol = bolt
port = 7687
db = neo4j
user = neo4j
# Leave empty to use the credential chain (NEO4J_PASSWORD, keychain,
# credentials file, prompt)
password =

[PROJECT]
# Numeric project ID or namespace/path, e.g. 42 or group/project
project_id =
`

// WriteExample writes a skeleton config file with placeholder values.
// Used by the configure command to scaffold a starting point.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.ConfigurationErrorf("refusing to overwrite existing file %s", path)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfiguration, errors.SeverityFatal,
			fmt.Sprintf("failed to write config file %s", path))
	}
	return nil
}
