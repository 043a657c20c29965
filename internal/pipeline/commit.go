package pipeline

import (
	"context"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// CommitPipeline loads the project's commit history. Commits carry no
// user ids, only display names, so authors and committers are resolved
// by fuzzy name matching against the member nodes.
type CommitPipeline struct {
	base
	commits []*gitlab.Commit
}

// NewCommitPipeline creates the commit pipeline.
func NewCommitPipeline(deps Deps) Pipeline {
	return &CommitPipeline{base: newBase("Commit", graph.Commit, deps)}
}

func (p *CommitPipeline) Request(ctx context.Context) (int, error) {
	// An optional [COMMIT] ref_name key restricts the walk to one
	// branch or tag, the default is the whole history.
	refName := p.config.PipelineAttribute("COMMIT", "ref_name")

	commits, err := p.source.Commits(ctx, refName)
	if err != nil {
		return 0, err
	}
	p.commits = commits
	return len(commits), nil
}

func (p *CommitPipeline) Transform(ctx context.Context) error {
	for _, commit := range p.commits {
		node, err := p.graph.Create(ctx, graph.Commit, commitBag(commit))
		if err != nil {
			return err
		}

		author, err := p.findUserByName(ctx, commit.AuthorName)
		if err != nil {
			return err
		}
		if author != nil {
			if err := node.Relate("IS_AUTHOR", author); err != nil {
				return err
			}
		}

		committer, err := p.findUserByName(ctx, commit.CommitterName)
		if err != nil {
			return err
		}
		if committer != nil {
			if err := node.Relate("IS_COMMITTER", committer); err != nil {
				return err
			}
		}

		for _, parentID := range commit.ParentIDs {
			parent, err := p.graph.GetOrCreate(ctx, graph.Commit, parentID, nil)
			if err != nil {
				return err
			}
			if err := node.Relate("HAS_PARENT", parent); err != nil {
				return err
			}
		}

		p.nodes = append(p.nodes, node)
	}
	return nil
}

// findUserByName resolves a commit author or committer display name
// against the known users: first a substring match on the full name,
// then on its last whitespace-separated token. Display names are not
// unique, the first match wins.
func (p *CommitPipeline) findUserByName(ctx context.Context, name string) (*graph.Node, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil, nil
	}

	user, err := p.graph.Find(ctx, graph.User,
		graph.Filter{Property: "name", Operator: graph.Contains, Value: name})
	if err != nil || user != nil {
		return user, err
	}

	surname := fields[len(fields)-1]
	user, err = p.graph.Find(ctx, graph.User,
		graph.Filter{Property: "name", Operator: graph.Contains, Value: surname})
	if err != nil {
		return nil, err
	}
	if user == nil {
		p.logger.Debug("no user matches commit name", "name", name)
	}
	return user, nil
}
