package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator selects how a Filter compares a property against a value.
type Operator int

const (
	// Equals matches the exact property value.
	Equals Operator = iota
	// Contains matches substrings (Cypher CONTAINS).
	Contains
	// Matches applies a regular expression (Cypher =~).
	Matches
)

// Filter is one predicate in a node lookup.
type Filter struct {
	Property string
	Operator Operator
	Value    interface{}
}

// CypherBuilder builds parameterized Cypher queries. All values travel
// as parameters, identifiers (labels, property names, relationship
// types) are validated against a strict pattern, so no user-controlled
// string is ever concatenated into query syntax.
type CypherBuilder struct {
	params  map[string]interface{}
	counter int
}

// NewCypherBuilder creates a query builder.
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{
		params: make(map[string]interface{}),
	}
}

// AddParam adds a parameter and returns its placeholder.
func (b *CypherBuilder) AddParam(value interface{}) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query.
func (b *CypherBuilder) Params() map[string]interface{} {
	return b.params
}

// BuildMergeNode creates an idempotent node upsert: MERGE on the
// primary key, then overwrite the property bag.
func (b *CypherBuilder) BuildMergeNode(label, primaryKey string, keyValue interface{}, properties map[string]interface{}) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %s", label)
	}
	if !isValidIdentifier(primaryKey) {
		return "", fmt.Errorf("invalid primary key: %s", primaryKey)
	}
	for key := range properties {
		if !isValidIdentifier(key) {
			return "", fmt.Errorf("invalid property key: %s", key)
		}
	}

	keyParam := b.AddParam(keyValue)
	if len(properties) == 0 {
		return fmt.Sprintf("MERGE (n:%s {%s: %s}) RETURN n", label, primaryKey, keyParam), nil
	}

	propsParam := b.AddParam(properties)
	return fmt.Sprintf("MERGE (n:%s {%s: %s}) SET n += %s RETURN n",
		label, primaryKey, keyParam, propsParam), nil
}

// BuildMatchNode creates a first-match lookup with operator filters.
func (b *CypherBuilder) BuildMatchNode(label string, filters []Filter) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %s", label)
	}
	if len(filters) == 0 {
		return "", fmt.Errorf("match on %s requires at least one filter", label)
	}

	conditions := make([]string, 0, len(filters))
	for _, f := range filters {
		if !isValidIdentifier(f.Property) {
			return "", fmt.Errorf("invalid property key: %s", f.Property)
		}

		param := b.AddParam(f.Value)
		switch f.Operator {
		case Equals:
			conditions = append(conditions, fmt.Sprintf("n.%s = %s", f.Property, param))
		case Contains:
			conditions = append(conditions, fmt.Sprintf("n.%s CONTAINS %s", f.Property, param))
		case Matches:
			conditions = append(conditions, fmt.Sprintf("n.%s =~ %s", f.Property, param))
		default:
			return "", fmt.Errorf("unknown filter operator: %d", f.Operator)
		}
	}

	return fmt.Sprintf("MATCH (n:%s) WHERE %s RETURN n LIMIT 1",
		label, strings.Join(conditions, " AND ")), nil
}

// BuildMergeEdge creates an idempotent edge merge between two nodes
// addressed by their primary keys.
func (b *CypherBuilder) BuildMergeEdge(
	fromLabel, fromKey string, fromValue interface{},
	toLabel, toKey string, toValue interface{},
	relType string,
) (string, error) {
	if !isValidIdentifier(fromLabel) {
		return "", fmt.Errorf("invalid from label: %s", fromLabel)
	}
	if !isValidIdentifier(fromKey) {
		return "", fmt.Errorf("invalid from key: %s", fromKey)
	}
	if !isValidIdentifier(toLabel) {
		return "", fmt.Errorf("invalid to label: %s", toLabel)
	}
	if !isValidIdentifier(toKey) {
		return "", fmt.Errorf("invalid to key: %s", toKey)
	}
	if !isValidIdentifier(relType) {
		return "", fmt.Errorf("invalid relationship type: %s", relType)
	}

	fromParam := b.AddParam(fromValue)
	toParam := b.AddParam(toValue)

	return fmt.Sprintf(
		"MATCH (from:%s {%s: %s}) MATCH (to:%s {%s: %s}) MERGE (from)-[r:%s]->(to) RETURN from, to",
		fromLabel, fromKey, fromParam,
		toLabel, toKey, toParam,
		relType,
	), nil
}

// BuildUniqueConstraint creates the DDL for one uniqueness constraint.
// The IF NOT EXISTS clause keeps repeated registration idempotent.
func BuildUniqueConstraint(label, property string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %s", label)
	}
	if !isValidIdentifier(property) {
		return "", fmt.Errorf("invalid property key: %s", property)
	}

	name := strings.ToLower(label) + "_" + property + "_unique"
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		name, label, property), nil
}

// identifierPattern follows the Neo4j naming rules for labels,
// property names and relationship types.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier validates that a string can be safely used as a
// Cypher identifier. Only alphanumeric characters and underscores are
// allowed, which rules out injection through names.
func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
