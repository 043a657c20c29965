package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type runnerCall struct {
	cypher string
	params map[string]interface{}
}

// fakeRunner records every query and pops one prepared result per call.
// An exhausted result list yields empty record sets, which reads as
// "no match" to the repository.
type fakeRunner struct {
	calls   []runnerCall
	results [][]map[string]interface{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	f.calls = append(f.calls, runnerCall{cypher: cypher, params: params})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

func nodeRecord(props map[string]interface{}) []map[string]interface{} {
	return []map[string]interface{}{{"n": neo4j.Node{Props: props}}}
}

func TestCreateRequiresPrimaryKey(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]interface{}
	}{
		{"absent", map[string]interface{}{"username": "jdoe"}},
		{"nil", map[string]interface{}{"id": nil, "username": "jdoe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			repo := NewRepository(runner)

			_, err := repo.Create(context.Background(), User, tt.attrs)
			if err == nil {
				t.Fatal("Expected error for missing primary key")
			}
			if !errors.IsSchemaViolation(err) {
				t.Errorf("Expected schema violation, got %v", err)
			}
			if len(runner.calls) != 0 {
				t.Errorf("No query should run, got %d calls", len(runner.calls))
			}
		})
	}
}

func TestCreateFiltersProperties(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	node, err := repo.Create(context.Background(), User, map[string]interface{}{
		"id":         int64(7),
		"username":   "jdoe",
		"name":       "John Doe",
		"avatar_url": nil,       // nil values stay unset
		"followers":  int64(12), // not a declared property
		"BELONGS_TO": "x",       // relationship name, not a property
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Expected 1 query, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if !strings.HasPrefix(call.cypher, "MERGE (n:User {id: $p0})") {
		t.Errorf("Unexpected query: %q", call.cypher)
	}

	bag, ok := call.params["p1"].(map[string]interface{})
	if !ok {
		t.Fatalf("p1 is %T, want property map", call.params["p1"])
	}
	for _, dropped := range []string{"avatar_url", "followers", "BELONGS_TO"} {
		if _, ok := bag[dropped]; ok {
			t.Errorf("Property %q should have been filtered out", dropped)
		}
	}
	if bag["username"] != "jdoe" || bag["id"] != int64(7) {
		t.Errorf("Declared properties missing from bag: %v", bag)
	}

	if node.Key() != int64(7) {
		t.Errorf("Node key = %v, want 7", node.Key())
	}
	if node.Property("name") != "John Doe" {
		t.Errorf("Node property name = %v", node.Property("name"))
	}
}

func TestGetMiss(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	node, err := repo.Get(context.Background(), User, map[string]interface{}{"id": int64(99)})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if node != nil {
		t.Errorf("Expected nil node on miss, got %+v", node)
	}
}

func TestGetHitBindsProperties(t *testing.T) {
	runner := &fakeRunner{
		results: [][]map[string]interface{}{
			nodeRecord(map[string]interface{}{"id": int64(7), "username": "jdoe", "state": "active"}),
		},
	}
	repo := NewRepository(runner)

	node, err := repo.Get(context.Background(), User, map[string]interface{}{"username": "jdoe"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if node == nil {
		t.Fatal("Expected a node")
	}
	if node.Key() != int64(7) {
		t.Errorf("Key = %v, want 7", node.Key())
	}
	if node.Property("state") != "active" {
		t.Errorf("Property(state) = %v", node.Property("state"))
	}
}

func TestGetRequiresProperties(t *testing.T) {
	repo := NewRepository(&fakeRunner{})
	if _, err := repo.Get(context.Background(), User, nil); err == nil {
		t.Error("Expected error for empty property map")
	}
}

func TestGetBuildsDeterministicQuery(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	_, err := repo.Get(context.Background(), User, map[string]interface{}{
		"username": "jdoe",
		"id":       int64(7),
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	want := "MATCH (n:User) WHERE n.id = $p0 AND n.username = $p1 RETURN n LIMIT 1"
	if runner.calls[0].cypher != want {
		t.Errorf("Query = %q, want %q", runner.calls[0].cypher, want)
	}
}

func TestFindWithContains(t *testing.T) {
	runner := &fakeRunner{
		results: [][]map[string]interface{}{
			nodeRecord(map[string]interface{}{"id": int64(7), "name": "John Doe"}),
		},
	}
	repo := NewRepository(runner)

	node, err := repo.Find(context.Background(), User, Filter{Property: "name", Operator: Contains, Value: "Doe"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if node == nil {
		t.Fatal("Expected a node")
	}
	if !strings.Contains(runner.calls[0].cypher, "n.name CONTAINS $p0") {
		t.Errorf("Query = %q, want CONTAINS predicate", runner.calls[0].cypher)
	}
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	runner := &fakeRunner{
		results: [][]map[string]interface{}{
			nodeRecord(map[string]interface{}{"id": int64(7), "username": "jdoe"}),
		},
	}
	repo := NewRepository(runner)

	node, err := repo.GetOrCreate(context.Background(), User, int64(7), map[string]interface{}{"username": "other"})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("Existing node should not trigger a create, got %d calls", len(runner.calls))
	}
	if node.Property("username") != "jdoe" {
		t.Errorf("Existing properties must win, got %v", node.Property("username"))
	}
}

func TestGetOrCreateCreatesWhenAbsent(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	node, err := repo.GetOrCreate(context.Background(), User, int64(7), map[string]interface{}{"username": "jdoe"})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("Expected lookup plus create, got %d calls", len(runner.calls))
	}

	create := runner.calls[1]
	if !strings.HasPrefix(create.cypher, "MERGE (n:User") {
		t.Errorf("Second call should merge, got %q", create.cypher)
	}
	bag, _ := create.params["p1"].(map[string]interface{})
	if bag["id"] != int64(7) {
		t.Errorf("Primary key must be merged into attributes, bag = %v", bag)
	}
	if node.Key() != int64(7) {
		t.Errorf("Node key = %v", node.Key())
	}
}

func TestGetOrCreateMissingKey(t *testing.T) {
	repo := NewRepository(&fakeRunner{})

	for _, key := range []interface{}{nil, ""} {
		_, err := repo.GetOrCreate(context.Background(), User, key, nil)
		if err == nil {
			t.Errorf("Expected error for key %v", key)
			continue
		}
		if !errors.IsSchemaViolation(err) {
			t.Errorf("Expected schema violation for key %v, got %v", key, err)
		}
	}
}

func TestSetConstraints(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	if err := repo.SetConstraints(context.Background(), Milestone); err != nil {
		t.Fatalf("SetConstraints failed: %v", err)
	}

	want := []string{
		"CREATE CONSTRAINT milestone_id_unique IF NOT EXISTS FOR (n:Milestone) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT milestone_iid_unique IF NOT EXISTS FOR (n:Milestone) REQUIRE n.iid IS UNIQUE",
	}
	if len(runner.calls) != len(want) {
		t.Fatalf("Expected %d DDL statements, got %d", len(want), len(runner.calls))
	}
	for i, w := range want {
		if runner.calls[i].cypher != w {
			t.Errorf("DDL %d = %q, want %q", i, runner.calls[i].cypher, w)
		}
	}
}

func TestPushWritesPendingThenEdges(t *testing.T) {
	runner := &fakeRunner{
		results: [][]map[string]interface{}{
			nodeRecord(map[string]interface{}{"id": int64(1)}),
			{{"from": neo4j.Node{}, "to": neo4j.Node{}}},
			{{"from": neo4j.Node{}, "to": neo4j.Node{}}},
		},
	}
	repo := NewRepository(runner)

	issue := testNode(Issue, int64(1))
	author := testNode(User, int64(10))
	label := testNode(Label, int64(20))

	if err := issue.Set("state", "closed"); err != nil {
		t.Fatal(err)
	}
	if err := issue.Relate("CREATED_BY", author); err != nil {
		t.Fatal(err)
	}
	if err := issue.Relate("HAS_LABEL", label); err != nil {
		t.Fatal(err)
	}

	if err := repo.Push(context.Background(), issue); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if len(runner.calls) != 3 {
		t.Fatalf("Expected property update plus 2 edge merges, got %d calls", len(runner.calls))
	}
	if !strings.HasPrefix(runner.calls[0].cypher, "MERGE (n:Issue") {
		t.Errorf("First call should update properties, got %q", runner.calls[0].cypher)
	}
	if !strings.Contains(runner.calls[1].cypher, "[r:CREATED_BY]") {
		t.Errorf("Second call should merge CREATED_BY, got %q", runner.calls[1].cypher)
	}
	if !strings.Contains(runner.calls[2].cypher, "[r:HAS_LABEL]") {
		t.Errorf("Third call should merge HAS_LABEL, got %q", runner.calls[2].cypher)
	}

	if len(issue.Pending()) != 0 || len(issue.Edges()) != 0 {
		t.Error("Push must clear pending state")
	}
	if issue.Property("state") != "closed" {
		t.Errorf("Pushed property must remain visible, got %v", issue.Property("state"))
	}
}

func TestPushWithoutMutationsIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	if err := repo.Push(context.Background(), testNode(User, int64(1))); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("Nothing to persist, got %d calls", len(runner.calls))
	}
}

func TestPushMissingEndpointIsNotAnError(t *testing.T) {
	runner := &fakeRunner{}
	repo := NewRepository(runner)

	issue := testNode(Issue, int64(1))
	milestone := testNode(Milestone, int64(5))
	if err := issue.Relate("HAS_MILESTONE", milestone); err != nil {
		t.Fatal(err)
	}

	if err := repo.Push(context.Background(), issue); err != nil {
		t.Errorf("Missing endpoint must not fail the push, got %v", err)
	}
	if len(issue.Edges()) != 0 {
		t.Error("Edge commands must be cleared even when the merge had no effect")
	}
}

func TestPushPropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.SinkUnavailable(fmt.Errorf("connection refused"), "neo4j query failed")}
	repo := NewRepository(runner)

	issue := testNode(Issue, int64(1))
	if err := issue.Set("state", "closed"); err != nil {
		t.Fatal(err)
	}

	err := repo.Push(context.Background(), issue)
	if err == nil {
		t.Fatal("Expected runner error to propagate")
	}
	if !errors.IsSinkUnavailable(err) {
		t.Errorf("Expected sink error, got %v", err)
	}
}

func TestPushNilNode(t *testing.T) {
	repo := NewRepository(&fakeRunner{})
	if err := repo.Push(context.Background(), nil); err == nil {
		t.Error("Expected error for nil node")
	}
}
