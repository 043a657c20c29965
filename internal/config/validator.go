package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// knownProtocols are the URI schemes the Neo4j driver accepts.
var knownProtocols = []string{"bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc"}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ❌ %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠️  %s\n", warn))
		}
	}

	return sb.String()
}

// Validate checks the loaded config beyond the structural checks that
// Load already performs. Errors mean a run would fail, warnings flag
// values that are suspicious but usable.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateGitLab(result)
	c.validateNeo4j(result)
	c.validateProject(result)

	return result
}

func (c *Config) validateGitLab(result *ValidationResult) {
	u, err := url.Parse(c.GitLab.URL)
	if err != nil {
		result.AddError("GITLAB.url is invalid: %v", err)
	} else {
		if u.Scheme != "http" && u.Scheme != "https" {
			result.AddError("GITLAB.url must use http or https, got %q", c.GitLab.URL)
		}
		if u.Host == "" {
			result.AddError("GITLAB.url has no host: %q", c.GitLab.URL)
		}
		if u.Scheme == "http" {
			result.AddWarning("GITLAB.url uses plain http, the token will be sent unencrypted")
		}
	}

	if c.GitLab.Token == "" {
		result.AddWarning("GITLAB.token is empty, it will be resolved from the credential chain at run time")
	}
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if strings.Contains(c.Neo4j.Hostname, "://") {
		result.AddError("NEO4J.hostname must not include a protocol, use the NEO4J.protocol key: %q", c.Neo4j.Hostname)
	}

	if port, err := strconv.Atoi(c.Neo4j.Port); err != nil {
		result.AddError("NEO4J.port is not numeric: %q", c.Neo4j.Port)
	} else if port < 1 || port > 65535 {
		result.AddError("NEO4J.port is out of range: %d", port)
	}

	known := false
	for _, p := range knownProtocols {
		if c.Neo4j.Protocol == p {
			known = true
			break
		}
	}
	if !known {
		result.AddWarning("NEO4J.protocol %q is not a known driver scheme (%s)",
			c.Neo4j.Protocol, strings.Join(knownProtocols, ", "))
	}

	if c.Neo4j.Password == "" {
		result.AddWarning("NEO4J.password is empty, it will be resolved from the credential chain at run time")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("NEO4J.password is set to a very common password, consider changing it")
	}
}

func (c *Config) validateProject(result *ValidationResult) {
	id := c.Project.ID
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return // numeric project ID
	}
	if strings.Contains(id, "/") {
		return // namespace/path form
	}
	result.AddWarning("PROJECT.project_id %q is neither a numeric ID nor a namespace/path", id)
}
