// Package pipeline extracts one GitLab project into the property
// graph. Each pipeline owns one entity type and walks the same three
// phases: Init connects the project node and registers constraints,
// Request pulls the raw records from the API, Transform maps them to
// graph nodes and edge commands, Commit pushes the result.
package pipeline

import (
	"context"
	"log/slog"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/config"
	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// Source is the slice of the GitLab API the pipelines read from. The
// primary record lists are fetched by Request; notes, award emoji,
// approvals and changes are fetched per record during Transform.
type Source interface {
	Project(ctx context.Context) (*gitlab.Project, error)
	ProjectUsers(ctx context.Context) ([]*gitlab.ProjectUser, error)
	Labels(ctx context.Context) ([]*gitlab.Label, error)
	Milestones(ctx context.Context) ([]*gitlab.Milestone, error)
	Issues(ctx context.Context) ([]*gitlab.Issue, error)
	MergeRequests(ctx context.Context) ([]*gitlab.BasicMergeRequest, error)
	Commits(ctx context.Context, refName string) ([]*gitlab.Commit, error)
	IssueNotes(ctx context.Context, issueIID int64) ([]*gitlab.Note, error)
	MergeRequestNotes(ctx context.Context, mergeRequestIID int64) ([]*gitlab.Note, error)
	IssueAwardEmoji(ctx context.Context, issueIID int64) ([]*gitlab.AwardEmoji, error)
	MergeRequestAwardEmoji(ctx context.Context, mergeRequestIID int64) ([]*gitlab.AwardEmoji, error)
	IssueNoteAwardEmoji(ctx context.Context, issueIID, noteID int64) ([]*gitlab.AwardEmoji, error)
	MergeRequestNoteAwardEmoji(ctx context.Context, mergeRequestIID, noteID int64) ([]*gitlab.AwardEmoji, error)
	Approvals(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequestApprovals, error)
	Changes(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequest, []*gitlab.MergeRequestDiff, error)
}

// Graph is the slice of the graph repository the pipelines write to.
type Graph interface {
	Create(ctx context.Context, t graph.EntityType, attrs map[string]interface{}) (*graph.Node, error)
	Get(ctx context.Context, t graph.EntityType, properties map[string]interface{}) (*graph.Node, error)
	Find(ctx context.Context, t graph.EntityType, filters ...graph.Filter) (*graph.Node, error)
	GetOrCreate(ctx context.Context, t graph.EntityType, key interface{}, attrs map[string]interface{}) (*graph.Node, error)
	SetConstraints(ctx context.Context, t graph.EntityType) error
	Push(ctx context.Context, node *graph.Node) error
}

// Deps carries everything a pipeline needs to run.
type Deps struct {
	Config *config.Config
	Source Source
	Graph  Graph
}

// Pipeline is one extraction unit. The orchestrator calls the phases
// in order; Request and Commit report how many records they handled.
type Pipeline interface {
	Name() string
	Init(ctx context.Context) error
	Request(ctx context.Context) (int, error)
	Transform(ctx context.Context) error
	Commit(ctx context.Context) (int, error)
}

// base is the shared state and behavior of all pipelines. Concrete
// pipelines embed it and implement Request and Transform.
type base struct {
	name   string
	entity graph.EntityType

	config *config.Config
	source Source
	graph  Graph
	logger *slog.Logger

	// project is the resolved project node, set by Init. Transform
	// ties every primary node to it with BELONGS_TO.
	project *graph.Node

	// nodes accumulates the primary nodes built by Transform, in
	// insertion order. Commit pushes them in that order.
	nodes []*graph.Node
}

func newBase(name string, entity graph.EntityType, deps Deps) base {
	return base{
		name:   name,
		entity: entity,
		config: deps.Config,
		source: deps.Source,
		graph:  deps.Graph,
		logger: slog.Default().With("pipeline", name),
	}
}

// Name returns the pipeline's display name.
func (b *base) Name() string {
	return b.name
}

// Init resolves the project, upserts its node and registers the
// uniqueness constraint for the pipeline's own entity type. A project
// that cannot be fetched aborts the whole batch.
func (b *base) Init(ctx context.Context) error {
	project, err := b.source.Project(ctx)
	if err != nil {
		return err
	}

	node, err := b.graph.Create(ctx, graph.Project, projectBag(project))
	if err != nil {
		return err
	}
	b.project = node

	return b.graph.SetConstraints(ctx, b.entity)
}

// Commit pushes every node accumulated by Transform, in insertion
// order.
func (b *base) Commit(ctx context.Context) (int, error) {
	for i, node := range b.nodes {
		if err := b.graph.Push(ctx, node); err != nil {
			return i, err
		}
	}

	b.logger.Debug("commit finished", "nodes", len(b.nodes))
	return len(b.nodes), nil
}

// relateUser records an edge from node to the user with the given id.
// Users that are not in the graph are skipped with a debug log.
func (b *base) relateUser(ctx context.Context, node *graph.Node, relType string, userID int64) error {
	user, err := b.graph.Get(ctx, graph.User, map[string]interface{}{"id": userID})
	if err != nil {
		return err
	}
	if user == nil {
		b.logger.Debug("user not in graph, skipping edge", "rel", relType, "user_id", userID)
		return nil
	}
	return node.Relate(relType, user)
}

// ensureUser records an edge from node to the user with the given id,
// upserting a bare user node first. Covers authors and approvers that
// are no longer project members.
func (b *base) ensureUser(ctx context.Context, node *graph.Node, relType string, userID int64) error {
	user, err := b.graph.GetOrCreate(ctx, graph.User, userID, nil)
	if err != nil {
		return err
	}
	return node.Relate(relType, user)
}

// noteSource abstracts over the issue and merge request discussion
// endpoints so both pipelines attach notes and award emoji the same
// way.
type noteSource struct {
	notes     func(ctx context.Context, iid int64) ([]*gitlab.Note, error)
	noteEmoji func(ctx context.Context, iid, noteID int64) ([]*gitlab.AwardEmoji, error)
	emoji     func(ctx context.Context, iid int64) ([]*gitlab.AwardEmoji, error)
}

// attachDiscussion loads the notes and award emoji of one record and
// ties them to node. Notes and emoji are pushed as they are built,
// node itself only accumulates edge commands for its own Push.
func (b *base) attachDiscussion(ctx context.Context, node *graph.Node, iid int64, src noteSource) error {
	notes, err := src.notes(ctx, iid)
	if err != nil {
		return err
	}

	for _, note := range notes {
		noteNode, err := b.graph.GetOrCreate(ctx, graph.Note, note.ID, noteBag(note))
		if err != nil {
			return err
		}
		if note.Author.ID != 0 {
			if err := b.relateUser(ctx, noteNode, "HAS_AUTHOR", note.Author.ID); err != nil {
				return err
			}
		}

		awards, err := src.noteEmoji(ctx, iid, note.ID)
		if err != nil {
			return err
		}
		for _, award := range awards {
			emojiNode, err := b.attachAward(ctx, award)
			if err != nil {
				return err
			}
			if err := noteNode.Relate("WAS_AWARDED_WITH", emojiNode); err != nil {
				return err
			}
		}

		if err := b.graph.Push(ctx, noteNode); err != nil {
			return err
		}
		if err := node.Relate("HAS_NOTE", noteNode); err != nil {
			return err
		}
	}

	awards, err := src.emoji(ctx, iid)
	if err != nil {
		return err
	}
	for _, award := range awards {
		emojiNode, err := b.attachAward(ctx, award)
		if err != nil {
			return err
		}
		if err := node.Relate("WAS_AWARDED_WITH", emojiNode); err != nil {
			return err
		}
	}

	return nil
}

// attachAward upserts one award emoji together with its awarding user
// and pushes it.
func (b *base) attachAward(ctx context.Context, award *gitlab.AwardEmoji) (*graph.Node, error) {
	node, err := b.graph.GetOrCreate(ctx, graph.AwardEmoji, award.ID, awardEmojiBag(award))
	if err != nil {
		return nil, err
	}
	if award.User.ID != 0 {
		if err := b.relateUser(ctx, node, "WAS_AWARDED_BY", award.User.ID); err != nil {
			return nil, err
		}
	}
	if err := b.graph.Push(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}
