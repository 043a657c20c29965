package graph

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Repository provides the node-level operations the pipelines build on:
// idempotent creates, lookups, constraint registration and Push, which
// persists a node's recorded mutations.
type Repository struct {
	runner Runner
	logger *slog.Logger
}

// NewRepository creates a repository on top of a query runner.
func NewRepository(runner Runner) *Repository {
	return &Repository{
		runner: runner,
		logger: slog.Default().With("component", "repository"),
	}
}

// Create upserts a node by primary key and binds it. The attribute bag
// must contain the primary key. Only declared scalar properties are
// written, relationship-named and unknown keys are dropped, nil values
// are left unset so missing source fields never null out properties.
func (r *Repository) Create(ctx context.Context, t EntityType, attrs map[string]interface{}) (*Node, error) {
	key, ok := attrs[t.PrimaryKey]
	if !ok || key == nil {
		return nil, errors.SchemaViolationf("primary %q not in attributes for %s", t.PrimaryKey, t.Label)
	}

	bag := make(map[string]interface{}, len(attrs))
	for name, value := range attrs {
		if !t.HasProperty(name) || value == nil {
			continue
		}
		bag[name] = value
	}

	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeNode(t.Label, t.PrimaryKey, key, bag)
	if err != nil {
		return nil, errors.InternalErrorf("build create query for %s: %v", t.Label, err)
	}

	if _, err := r.runner.Run(ctx, cypher, builder.Params()); err != nil {
		return nil, err
	}

	r.logger.Debug("node upserted", "label", t.Label, "key", key)
	return NewNode(t, key, bag), nil
}

// Get returns the first node whose properties equal the given values,
// or nil when no node matches.
func (r *Repository) Get(ctx context.Context, t EntityType, properties map[string]interface{}) (*Node, error) {
	if len(properties) == 0 {
		return nil, errors.InternalErrorf("get %s requires at least one property", t.Label)
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		filters = append(filters, Filter{Property: name, Operator: Equals, Value: properties[name]})
	}

	return r.Find(ctx, t, filters...)
}

// Find returns the first node matching the operator filters, or nil
// when no node matches.
func (r *Repository) Find(ctx context.Context, t EntityType, filters ...Filter) (*Node, error) {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMatchNode(t.Label, filters)
	if err != nil {
		return nil, errors.InternalErrorf("build lookup query for %s: %v", t.Label, err)
	}

	records, err := r.runner.Run(ctx, cypher, builder.Params())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	return nodeFromRecord(t, records[0])
}

// GetOrCreate looks a node up by primary key and creates it with the
// given attributes when absent. Only a missing key is an error, so
// forward references can be materialized before their pipeline runs.
func (r *Repository) GetOrCreate(ctx context.Context, t EntityType, key interface{}, attrs map[string]interface{}) (*Node, error) {
	if key == nil || key == "" {
		return nil, errors.SchemaViolationf("primary key missing for %s", t.Label)
	}

	node, err := r.Get(ctx, t, map[string]interface{}{t.PrimaryKey: key})
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}

	merged := make(map[string]interface{}, len(attrs)+1)
	for name, value := range attrs {
		merged[name] = value
	}
	merged[t.PrimaryKey] = key

	return r.Create(ctx, t, merged)
}

// SetConstraints registers one uniqueness constraint per unique key of
// the entity type. Safe to call repeatedly.
func (r *Repository) SetConstraints(ctx context.Context, t EntityType) error {
	for _, property := range t.UniqueKeys {
		cypher, err := BuildUniqueConstraint(t.Label, property)
		if err != nil {
			return errors.InternalErrorf("build constraint for %s.%s: %v", t.Label, property, err)
		}
		if _, err := r.runner.Run(ctx, cypher, nil); err != nil {
			return err
		}
		r.logger.Debug("constraint ensured", "label", t.Label, "property", property)
	}
	return nil
}

// Push persists a node's recorded mutations: pending property updates
// first, then every edge command in recording order. Both write paths
// are merges, so pushing the same state twice leaves the graph
// unchanged. All pending state is cleared afterwards.
func (r *Repository) Push(ctx context.Context, node *Node) error {
	if node == nil {
		return errors.InternalError("push of nil node")
	}

	if len(node.pending) > 0 {
		builder := NewCypherBuilder()
		cypher, err := builder.BuildMergeNode(node.typ.Label, node.typ.PrimaryKey, node.key, node.pending)
		if err != nil {
			return errors.InternalErrorf("build property update for %s: %v", node.typ.Label, err)
		}
		if _, err := r.runner.Run(ctx, cypher, builder.Params()); err != nil {
			return err
		}

		if node.props == nil {
			node.props = make(map[string]interface{}, len(node.pending))
		}
		for name, value := range node.pending {
			node.props[name] = value
		}
	}

	for _, cmd := range node.edges {
		builder := NewCypherBuilder()
		cypher, err := builder.BuildMergeEdge(
			node.typ.Label, node.typ.PrimaryKey, node.key,
			cmd.TargetLabel, cmd.TargetPK, cmd.TargetKey,
			cmd.Type,
		)
		if err != nil {
			return errors.InternalErrorf("build edge merge %s-[%s]->%s: %v",
				node.typ.Label, cmd.Type, cmd.TargetLabel, err)
		}

		records, err := r.runner.Run(ctx, cypher, builder.Params())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			r.logger.Warn("edge endpoint missing, merge had no effect",
				"from", node.typ.Label, "key", node.key,
				"rel", cmd.Type, "to", cmd.TargetLabel, "target_key", cmd.TargetKey)
		}
	}

	node.clearPending()
	return nil
}

// nodeFromRecord binds a returned node column to an EntityType.
func nodeFromRecord(t EntityType, record map[string]interface{}) (*Node, error) {
	value, ok := record["n"]
	if !ok {
		return nil, errors.InternalErrorf("%s lookup returned no node column", t.Label)
	}
	dbNode, ok := value.(neo4j.Node)
	if !ok {
		return nil, errors.InternalErrorf("%s lookup returned %T, expected a node", t.Label, value)
	}

	props := make(map[string]interface{}, len(dbNode.Props))
	for name, v := range dbNode.Props {
		props[name] = v
	}

	return NewNode(t, props[t.PrimaryKey], props), nil
}
