package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// fakeSource serves canned API records and logs the calls it receives.
// A non-nil err fails every call.
type fakeSource struct {
	project       *gitlab.Project
	users         []*gitlab.ProjectUser
	labels        []*gitlab.Label
	milestones    []*gitlab.Milestone
	issues        []*gitlab.Issue
	mergeRequests []*gitlab.BasicMergeRequest
	commits       []*gitlab.Commit

	issueNotes     map[int64][]*gitlab.Note
	mergeNotes     map[int64][]*gitlab.Note
	issueEmoji     map[int64][]*gitlab.AwardEmoji
	mergeEmoji     map[int64][]*gitlab.AwardEmoji
	issueNoteEmoji map[string][]*gitlab.AwardEmoji
	mergeNoteEmoji map[string][]*gitlab.AwardEmoji

	approvals map[int64]*gitlab.MergeRequestApprovals
	details   map[int64]*gitlab.MergeRequest
	diffs     map[int64][]*gitlab.MergeRequestDiff

	calls []string
	err   error
}

func (s *fakeSource) record(call string) error {
	s.calls = append(s.calls, call)
	return s.err
}

func noteEmojiKey(iid, noteID int64) string {
	return fmt.Sprintf("%d/%d", iid, noteID)
}

func (s *fakeSource) Project(ctx context.Context) (*gitlab.Project, error) {
	if err := s.record("project"); err != nil {
		return nil, err
	}
	if s.project != nil {
		return s.project, nil
	}
	return &gitlab.Project{
		ID:        1,
		Name:      "fixture",
		Namespace: &gitlab.ProjectNamespace{Name: "group"},
	}, nil
}

func (s *fakeSource) ProjectUsers(ctx context.Context) ([]*gitlab.ProjectUser, error) {
	if err := s.record("users"); err != nil {
		return nil, err
	}
	return s.users, nil
}

func (s *fakeSource) Labels(ctx context.Context) ([]*gitlab.Label, error) {
	if err := s.record("labels"); err != nil {
		return nil, err
	}
	return s.labels, nil
}

func (s *fakeSource) Milestones(ctx context.Context) ([]*gitlab.Milestone, error) {
	if err := s.record("milestones"); err != nil {
		return nil, err
	}
	return s.milestones, nil
}

func (s *fakeSource) Issues(ctx context.Context) ([]*gitlab.Issue, error) {
	if err := s.record("issues"); err != nil {
		return nil, err
	}
	return s.issues, nil
}

func (s *fakeSource) MergeRequests(ctx context.Context) ([]*gitlab.BasicMergeRequest, error) {
	if err := s.record("merge_requests"); err != nil {
		return nil, err
	}
	return s.mergeRequests, nil
}

func (s *fakeSource) Commits(ctx context.Context, refName string) ([]*gitlab.Commit, error) {
	if err := s.record("commits:" + refName); err != nil {
		return nil, err
	}
	return s.commits, nil
}

func (s *fakeSource) IssueNotes(ctx context.Context, issueIID int64) ([]*gitlab.Note, error) {
	if err := s.record(fmt.Sprintf("issue_notes:%d", issueIID)); err != nil {
		return nil, err
	}
	return s.issueNotes[issueIID], nil
}

func (s *fakeSource) MergeRequestNotes(ctx context.Context, mergeRequestIID int64) ([]*gitlab.Note, error) {
	if err := s.record(fmt.Sprintf("merge_request_notes:%d", mergeRequestIID)); err != nil {
		return nil, err
	}
	return s.mergeNotes[mergeRequestIID], nil
}

func (s *fakeSource) IssueAwardEmoji(ctx context.Context, issueIID int64) ([]*gitlab.AwardEmoji, error) {
	if err := s.record(fmt.Sprintf("issue_emoji:%d", issueIID)); err != nil {
		return nil, err
	}
	return s.issueEmoji[issueIID], nil
}

func (s *fakeSource) MergeRequestAwardEmoji(ctx context.Context, mergeRequestIID int64) ([]*gitlab.AwardEmoji, error) {
	if err := s.record(fmt.Sprintf("merge_request_emoji:%d", mergeRequestIID)); err != nil {
		return nil, err
	}
	return s.mergeEmoji[mergeRequestIID], nil
}

func (s *fakeSource) IssueNoteAwardEmoji(ctx context.Context, issueIID, noteID int64) ([]*gitlab.AwardEmoji, error) {
	if err := s.record(fmt.Sprintf("issue_note_emoji:%d/%d", issueIID, noteID)); err != nil {
		return nil, err
	}
	return s.issueNoteEmoji[noteEmojiKey(issueIID, noteID)], nil
}

func (s *fakeSource) MergeRequestNoteAwardEmoji(ctx context.Context, mergeRequestIID, noteID int64) ([]*gitlab.AwardEmoji, error) {
	if err := s.record(fmt.Sprintf("merge_request_note_emoji:%d/%d", mergeRequestIID, noteID)); err != nil {
		return nil, err
	}
	return s.mergeNoteEmoji[noteEmojiKey(mergeRequestIID, noteID)], nil
}

func (s *fakeSource) Approvals(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequestApprovals, error) {
	if err := s.record(fmt.Sprintf("approvals:%d", mergeRequestIID)); err != nil {
		return nil, err
	}
	if approvals, ok := s.approvals[mergeRequestIID]; ok {
		return approvals, nil
	}
	return &gitlab.MergeRequestApprovals{}, nil
}

func (s *fakeSource) Changes(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequest, []*gitlab.MergeRequestDiff, error) {
	if err := s.record(fmt.Sprintf("changes:%d", mergeRequestIID)); err != nil {
		return nil, nil, err
	}
	detail := s.details[mergeRequestIID]
	if detail == nil {
		detail = &gitlab.MergeRequest{}
	}
	return detail, s.diffs[mergeRequestIID], nil
}

// fakePush snapshots one Push call: the node's pending writes and edge
// commands at that moment.
type fakePush struct {
	label   string
	key     interface{}
	pending map[string]interface{}
	edges   []graph.EdgeCommand
}

// hasEdge reports whether the snapshot contains an edge command of the
// given type pointing at the given key.
func (p fakePush) hasEdge(relType string, targetKey interface{}) bool {
	for _, e := range p.edges {
		if e.Type == relType && e.TargetKey == targetKey {
			return true
		}
	}
	return false
}

// edgeCount counts the snapshot's edge commands of one type.
func (p fakePush) edgeCount(relType string) int {
	count := 0
	for _, e := range p.edges {
		if e.Type == relType {
			count++
		}
	}
	return count
}

// fakeGraph is an in-memory stand-in for the repository. Nodes are
// stored in creation order so lookups are deterministic.
type fakeGraph struct {
	nodes       map[string]*graph.Node
	order       []string
	constraints []string
	pushes      []fakePush
	err         error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[string]*graph.Node)}
}

func storeKey(label string, key interface{}) string {
	return fmt.Sprintf("%s/%v", label, key)
}

// node returns a stored node, failing the lookup silently. Tests use
// it to inspect the store after a transform.
func (g *fakeGraph) node(label string, key interface{}) *graph.Node {
	return g.nodes[storeKey(label, key)]
}

// push returns the first snapshot for a node, or nil.
func (g *fakeGraph) push(label string, key interface{}) *fakePush {
	for i := range g.pushes {
		if g.pushes[i].label == label && g.pushes[i].key == key {
			return &g.pushes[i]
		}
	}
	return nil
}

func (g *fakeGraph) Create(ctx context.Context, t graph.EntityType, attrs map[string]interface{}) (*graph.Node, error) {
	if g.err != nil {
		return nil, g.err
	}

	key := attrs[t.PrimaryKey]
	if key == nil {
		return nil, errors.SchemaViolationf("cannot create %s without primary key %s", t.Label, t.PrimaryKey)
	}

	props := make(map[string]interface{})
	for name, value := range attrs {
		if value == nil || !t.HasProperty(name) {
			continue
		}
		props[name] = value
	}

	node := graph.NewNode(t, key, props)
	id := storeKey(t.Label, key)
	if _, exists := g.nodes[id]; !exists {
		g.order = append(g.order, id)
	}
	g.nodes[id] = node
	return node, nil
}

func (g *fakeGraph) Get(ctx context.Context, t graph.EntityType, properties map[string]interface{}) (*graph.Node, error) {
	if g.err != nil {
		return nil, g.err
	}

	for _, id := range g.order {
		node := g.nodes[id]
		if node.Type().Label != t.Label {
			continue
		}
		match := true
		for name, want := range properties {
			if node.Property(name) != want {
				match = false
				break
			}
		}
		if match {
			return node, nil
		}
	}
	return nil, nil
}

func (g *fakeGraph) Find(ctx context.Context, t graph.EntityType, filters ...graph.Filter) (*graph.Node, error) {
	if g.err != nil {
		return nil, g.err
	}

	for _, id := range g.order {
		node := g.nodes[id]
		if node.Type().Label != t.Label {
			continue
		}
		if matchesFilters(node, filters) {
			return node, nil
		}
	}
	return nil, nil
}

func matchesFilters(node *graph.Node, filters []graph.Filter) bool {
	for _, f := range filters {
		value := node.Property(f.Property)
		switch f.Operator {
		case graph.Equals:
			if value != f.Value {
				return false
			}
		case graph.Contains:
			s, sok := value.(string)
			want, wok := f.Value.(string)
			if !sok || !wok || !strings.Contains(s, want) {
				return false
			}
		case graph.Matches:
			s, sok := value.(string)
			pattern, pok := f.Value.(string)
			if !sok || !pok {
				return false
			}
			re, err := regexp.Compile(pattern)
			if err != nil || !re.MatchString(s) {
				return false
			}
		}
	}
	return true
}

func (g *fakeGraph) GetOrCreate(ctx context.Context, t graph.EntityType, key interface{}, attrs map[string]interface{}) (*graph.Node, error) {
	if g.err != nil {
		return nil, g.err
	}
	if key == nil || key == "" {
		return nil, errors.SchemaViolationf("cannot upsert %s without primary key", t.Label)
	}

	if node, ok := g.nodes[storeKey(t.Label, key)]; ok {
		return node, nil
	}

	merged := map[string]interface{}{t.PrimaryKey: key}
	for name, value := range attrs {
		merged[name] = value
	}
	return g.Create(ctx, t, merged)
}

func (g *fakeGraph) SetConstraints(ctx context.Context, t graph.EntityType) error {
	if g.err != nil {
		return g.err
	}
	g.constraints = append(g.constraints, t.Label)
	return nil
}

func (g *fakeGraph) Push(ctx context.Context, node *graph.Node) error {
	if g.err != nil {
		return g.err
	}

	pending := make(map[string]interface{})
	for name, value := range node.Pending() {
		pending[name] = value
	}
	g.pushes = append(g.pushes, fakePush{
		label:   node.Type().Label,
		key:     node.Key(),
		pending: pending,
		edges:   append([]graph.EdgeCommand(nil), node.Edges()...),
	})
	return nil
}

// runPipeline walks one pipeline through all four phases, failing the
// test on the first error.
func runPipeline(t *testing.T, pipe Pipeline) {
	t.Helper()
	ctx := context.Background()

	if err := pipe.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := pipe.Request(ctx); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if err := pipe.Transform(ctx); err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if _, err := pipe.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

// testNote builds a note authored by the given user. Author is an
// anonymous struct in the API types, so it cannot be set in a literal.
func testNote(id, authorID int64, body string) *gitlab.Note {
	note := &gitlab.Note{ID: id, Body: body}
	note.Author.ID = authorID
	return note
}

// testAward builds an award emoji given by the given user.
func testAward(id, userID int64, name string) *gitlab.AwardEmoji {
	award := &gitlab.AwardEmoji{ID: id, Name: name}
	award.User.ID = userID
	return award
}
