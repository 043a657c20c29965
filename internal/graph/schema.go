package graph

import (
	"fmt"
	"strings"
)

// Cardinality states how many edges of one relationship type a node may
// carry. Single relationships are replaced on re-assignment, Multiple
// relationships accumulate.
type Cardinality int

const (
	Single Cardinality = iota
	Multiple
)

// Relationship declares an outgoing edge an entity type may carry.
// Target is the label of the entity type the edge points to.
type Relationship struct {
	Type        string
	Target      string
	Cardinality Cardinality
}

// EntityType describes one node type: its Neo4j label, the primary key
// used for merging, the keys carrying uniqueness constraints, the
// declared scalar properties, and the outgoing relationships.
type EntityType struct {
	Label         string
	PrimaryKey    string
	UniqueKeys    []string
	Properties    []string
	Relationships []Relationship
}

// HasProperty reports whether name is a declared scalar property.
func (t EntityType) HasProperty(name string) bool {
	for _, p := range t.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// Relationship looks up a declared relationship by type.
func (t EntityType) Relationship(relType string) (Relationship, bool) {
	for _, r := range t.Relationships {
		if r.Type == relType {
			return r, true
		}
	}
	return Relationship{}, false
}

// The entity types of the extracted project graph. Labels, keys and
// property names follow the GitLab REST payloads; timestamps stay
// strings in the source's wire format.
var (
	Project = EntityType{
		Label:      "Project",
		PrimaryKey: "id",
		UniqueKeys: []string{"id"},
		Properties: []string{
			"id", "name", "description", "default_branch",
			"created_at", "last_activity_at", "namespace_name",
		},
	}

	User = EntityType{
		Label:      "User",
		PrimaryKey: "id",
		UniqueKeys: []string{"id", "username"},
		Properties: []string{"id", "name", "username", "state"},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
		},
	}

	Label = EntityType{
		Label:      "Label",
		PrimaryKey: "id",
		UniqueKeys: []string{"id"},
		Properties: []string{
			"id", "name", "color", "description",
			"open_merge_requests_count", "open_issues_requests_count",
			"closed_issues_requests_count", "is_project_label",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
		},
	}

	Milestone = EntityType{
		Label:      "Milestone",
		PrimaryKey: "id",
		UniqueKeys: []string{"id", "iid"},
		Properties: []string{
			"id", "iid", "title", "description", "state",
			"created_at", "updated_at", "due_date", "start_date",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
		},
	}

	Note = EntityType{
		Label:      "Note",
		PrimaryKey: "id",
		UniqueKeys: []string{"id"},
		Properties: []string{
			"id", "type", "body", "attachment", "system",
			"resolvable", "created_at", "updated_at",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
			{Type: "HAS_AUTHOR", Target: "User", Cardinality: Single},
			{Type: "WAS_AWARDED_WITH", Target: "AwardEmoji", Cardinality: Multiple},
		},
	}

	Issue = EntityType{
		Label:      "Issue",
		PrimaryKey: "id",
		UniqueKeys: []string{"id", "iid"},
		Properties: []string{
			"id", "iid", "title", "description", "state", "weight",
			"merge_requests_count", "created_at", "updated_at", "closed_at",
			"confidential", "due_date", "upvotes", "downvotes",
			"has_tasks", "task_status", "task_count", "task_completed",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
			{Type: "HAS_LABEL", Target: "Label", Cardinality: Multiple},
			{Type: "HAS_MILESTONE", Target: "Milestone", Cardinality: Single},
			{Type: "CREATED_BY", Target: "User", Cardinality: Single},
			{Type: "WAS_ASSIGNED", Target: "User", Cardinality: Multiple},
			{Type: "IS_ASSIGNED", Target: "User", Cardinality: Single},
			{Type: "CLOSED_BY", Target: "User", Cardinality: Single},
			{Type: "HAS_NOTE", Target: "Note", Cardinality: Multiple},
			{Type: "WAS_AWARDED_WITH", Target: "AwardEmoji", Cardinality: Multiple},
		},
	}

	MergeRequest = EntityType{
		Label:      "MergeRequest",
		PrimaryKey: "id",
		UniqueKeys: []string{"id", "iid"},
		Properties: []string{
			"id", "iid", "title", "state", "description",
			"work_in_progress", "merge_when_pipeline_succeeds",
			"force_remove_source_branch", "should_remove_source_branch",
			"merge_status", "sha", "merge_commit_sha", "reference", "squash",
			"approvals_before_merge", "approvals_required", "approvals_left",
			"approved", "created_at", "updated_at", "merged_at", "closed_at",
			"target_branch", "source_branch", "user_notes_count",
			"upvotes", "downvotes", "task_count", "task_completed",
			"changes_count", "merge_error",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
			{Type: "HAS_LABEL", Target: "Label", Cardinality: Multiple},
			{Type: "HAS_MILESTONE", Target: "Milestone", Cardinality: Single},
			{Type: "CREATED_BY", Target: "User", Cardinality: Single},
			{Type: "IS_ASSIGNED", Target: "User", Cardinality: Single},
			{Type: "WAS_ASSIGNED", Target: "User", Cardinality: Multiple},
			{Type: "CLOSED_BY", Target: "User", Cardinality: Single},
			{Type: "MERGED_BY", Target: "User", Cardinality: Single},
			{Type: "IS_RELATED", Target: "Issue", Cardinality: Single},
			{Type: "HAS_MERGE_COMMIT", Target: "Commit", Cardinality: Single},
			{Type: "IS_LATEST_COMMIT", Target: "Commit", Cardinality: Single},
			{Type: "HAS_NOTE", Target: "Note", Cardinality: Multiple},
			{Type: "WAS_AWARDED_WITH", Target: "AwardEmoji", Cardinality: Multiple},
			{Type: "APPROVED_BY", Target: "User", Cardinality: Multiple},
			{Type: "HAS_CHANGE", Target: "Change", Cardinality: Multiple},
		},
	}

	Commit = EntityType{
		Label:      "Commit",
		PrimaryKey: "id",
		UniqueKeys: []string{"id", "short_id"},
		Properties: []string{
			"id", "short_id", "title", "message", "created_at",
			"author_name", "author_email", "authored_date",
			"committer_name", "committer_email", "committed_date",
		},
		Relationships: []Relationship{
			{Type: "BELONGS_TO", Target: "Project", Cardinality: Single},
			{Type: "IS_AUTHOR", Target: "User", Cardinality: Single},
			{Type: "IS_COMMITTER", Target: "User", Cardinality: Single},
			{Type: "HAS_PARENT", Target: "Commit", Cardinality: Multiple},
		},
	}

	AwardEmoji = EntityType{
		Label:      "AwardEmoji",
		PrimaryKey: "id",
		UniqueKeys: []string{"id"},
		Properties: []string{
			"id", "name", "title", "message", "created_at", "updated_at",
		},
		Relationships: []Relationship{
			{Type: "WAS_AWARDED_BY", Target: "User", Cardinality: Single},
		},
	}

	Change = EntityType{
		Label:      "Change",
		PrimaryKey: "id",
		UniqueKeys: []string{"id"},
		Properties: []string{
			"id", "old_path", "new_path", "a_mode", "b_mode",
			"new_file", "renamed_file", "deleted_file", "diff",
		},
	}
)

// registry lists every entity type in a fixed order. Order matters for
// deterministic constraint registration and schema validation output.
var registry = []EntityType{
	Project, User, Label, Milestone, Note,
	Issue, MergeRequest, Commit, AwardEmoji, Change,
}

// Types returns all declared entity types.
func Types() []EntityType {
	out := make([]EntityType, len(registry))
	copy(out, registry)
	return out
}

// TypeByLabel resolves an entity type from its label.
func TypeByLabel(label string) (EntityType, bool) {
	for _, t := range registry {
		if t.Label == label {
			return t, true
		}
	}
	return EntityType{}, false
}

// ValidateSchema checks the registry for internal consistency: valid
// identifiers, primary keys that are declared and unique-constrained,
// and relationship targets that resolve to a registered type. Called at
// startup so a broken declaration fails before any network access.
func ValidateSchema() error {
	return validateTypes(registry)
}

func validateTypes(types []EntityType) error {
	seen := make(map[string]bool, len(types))

	for _, t := range types {
		if !isValidIdentifier(t.Label) {
			return fmt.Errorf("entity label %q is not a valid identifier", t.Label)
		}
		if seen[t.Label] {
			return fmt.Errorf("entity label %q declared twice", t.Label)
		}
		seen[t.Label] = true

		if !t.HasProperty(t.PrimaryKey) {
			return fmt.Errorf("%s: primary key %q is not a declared property", t.Label, t.PrimaryKey)
		}

		hasPK := false
		for _, k := range t.UniqueKeys {
			if !t.HasProperty(k) {
				return fmt.Errorf("%s: unique key %q is not a declared property", t.Label, k)
			}
			if k == t.PrimaryKey {
				hasPK = true
			}
		}
		if !hasPK {
			return fmt.Errorf("%s: primary key %q missing from unique keys", t.Label, t.PrimaryKey)
		}

		for _, p := range t.Properties {
			if !isValidIdentifier(p) {
				return fmt.Errorf("%s: property %q is not a valid identifier", t.Label, p)
			}
		}

		relSeen := make(map[string]bool, len(t.Relationships))
		for _, r := range t.Relationships {
			if !isValidIdentifier(r.Type) {
				return fmt.Errorf("%s: relationship type %q is not a valid identifier", t.Label, r.Type)
			}
			if relSeen[r.Type] {
				return fmt.Errorf("%s: relationship %q declared twice", t.Label, r.Type)
			}
			relSeen[r.Type] = true
			if r.Type != strings.ToUpper(r.Type) {
				return fmt.Errorf("%s: relationship %q must be upper case", t.Label, r.Type)
			}
		}
	}

	for _, t := range types {
		for _, r := range t.Relationships {
			if !seen[r.Target] {
				return fmt.Errorf("%s: relationship %s targets undefined type %q", t.Label, r.Type, r.Target)
			}
		}
	}

	return nil
}
