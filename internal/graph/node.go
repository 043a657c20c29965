package graph

import (
	"github.com/dlr-sc/gitlab2graph/internal/errors"
)

// EdgeCommand is one pending relationship merge, recorded during
// transform and applied at Push. It is self-contained: both endpoints
// are referenced by label and primary key value.
type EdgeCommand struct {
	Type        string
	TargetLabel string
	TargetPK    string
	TargetKey   interface{}
	Cardinality Cardinality
}

// Node is a bound graph node: its entity type, the property bag it was
// created or loaded with, and the pending mutations (property updates
// and edge commands) that the next Push will persist.
type Node struct {
	typ     EntityType
	key     interface{}
	props   map[string]interface{}
	pending map[string]interface{}
	edges   []EdgeCommand
}

// NewNode binds an entity type to a primary key value and property
// bag. Nodes are normally returned by the repository's lookups, the
// constructor builds the same binding without touching the store.
func NewNode(t EntityType, key interface{}, props map[string]interface{}) *Node {
	return &Node{typ: t, key: key, props: props}
}

// Type returns the node's entity type.
func (n *Node) Type() EntityType {
	return n.typ
}

// Key returns the primary key value the node is bound to.
func (n *Node) Key() interface{} {
	return n.key
}

// Property returns a property value, preferring pending updates over
// the loaded bag. Undeclared names yield nil.
func (n *Node) Property(name string) interface{} {
	if v, ok := n.pending[name]; ok {
		return v
	}
	return n.props[name]
}

// Set records a property update to be written at the next Push. Only
// declared scalar properties may be set.
func (n *Node) Set(name string, value interface{}) error {
	if !n.typ.HasProperty(name) {
		return errors.SchemaViolationf("%s has no property %q", n.typ.Label, name)
	}
	if n.pending == nil {
		n.pending = make(map[string]interface{})
	}
	n.pending[name] = value
	return nil
}

// Relate records an edge command from this node to target. The
// relationship must be declared on this node's type and target must be
// of the declared type. Single-cardinality relationships replace any
// previously recorded command of the same type; Multiple append, with
// repeated identical endpoints collapsed.
func (n *Node) Relate(relType string, target *Node) error {
	if target == nil {
		return errors.InternalErrorf("relate %s.%s: target node is nil", n.typ.Label, relType)
	}

	rel, ok := n.typ.Relationship(relType)
	if !ok {
		return errors.SchemaViolationf("%s has no relationship %q", n.typ.Label, relType)
	}
	if rel.Target != target.typ.Label {
		return errors.SchemaViolationf("%s.%s targets %s, got %s",
			n.typ.Label, relType, rel.Target, target.typ.Label)
	}

	cmd := EdgeCommand{
		Type:        relType,
		TargetLabel: target.typ.Label,
		TargetPK:    target.typ.PrimaryKey,
		TargetKey:   target.key,
		Cardinality: rel.Cardinality,
	}

	if rel.Cardinality == Single {
		for i, existing := range n.edges {
			if existing.Type == relType {
				n.edges[i] = cmd
				return nil
			}
		}
		n.edges = append(n.edges, cmd)
		return nil
	}

	for _, existing := range n.edges {
		if existing.Type == cmd.Type && existing.TargetLabel == cmd.TargetLabel && existing.TargetKey == cmd.TargetKey {
			return nil
		}
	}
	n.edges = append(n.edges, cmd)
	return nil
}

// Pending returns the not-yet-pushed property updates.
func (n *Node) Pending() map[string]interface{} {
	return n.pending
}

// Edges returns the not-yet-pushed edge commands in recording order.
func (n *Node) Edges() []EdgeCommand {
	return n.edges
}

// clearPending drops all recorded mutations after a successful Push.
func (n *Node) clearPending() {
	n.pending = nil
	n.edges = nil
}
