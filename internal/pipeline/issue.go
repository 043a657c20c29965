package pipeline

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// IssuePipeline loads the project's issues and connects them to the
// users, labels and milestones loaded by the earlier pipelines.
// References that do not resolve are skipped, the issue itself is
// always stored.
type IssuePipeline struct {
	base
	issues []*gitlab.Issue
}

// NewIssuePipeline creates the issue pipeline.
func NewIssuePipeline(deps Deps) Pipeline {
	return &IssuePipeline{base: newBase("Issue", graph.Issue, deps)}
}

func (p *IssuePipeline) Request(ctx context.Context) (int, error) {
	issues, err := p.source.Issues(ctx)
	if err != nil {
		return 0, err
	}
	p.issues = issues
	return len(issues), nil
}

func (p *IssuePipeline) Transform(ctx context.Context) error {
	for _, issue := range p.issues {
		if err := p.transformIssue(ctx, issue); err != nil {
			return err
		}
	}
	return nil
}

func (p *IssuePipeline) transformIssue(ctx context.Context, issue *gitlab.Issue) error {
	// 1. Create the issue node itself.
	node, err := p.graph.Create(ctx, graph.Issue, issueBag(issue))
	if err != nil {
		return err
	}

	// 2. Resolve the involved users against the member nodes.
	if issue.Author != nil {
		if err := p.relateUser(ctx, node, "CREATED_BY", issue.Author.ID); err != nil {
			return err
		}
	}
	for _, assignee := range issue.Assignees {
		if err := p.relateUser(ctx, node, "WAS_ASSIGNED", assignee.ID); err != nil {
			return err
		}
	}
	if issue.Assignee != nil {
		if err := p.relateUser(ctx, node, "IS_ASSIGNED", issue.Assignee.ID); err != nil {
			return err
		}
	}
	if issue.ClosedBy != nil {
		if err := p.relateUser(ctx, node, "CLOSED_BY", issue.ClosedBy.ID); err != nil {
			return err
		}
	}

	// 3. Labels come as plain names, matched as patterns against the
	// label nodes.
	for _, labelName := range issue.Labels {
		label, err := p.graph.Find(ctx, graph.Label,
			graph.Filter{Property: "name", Operator: graph.Matches, Value: labelName})
		if err != nil {
			return err
		}
		if label == nil {
			p.logger.Debug("label not in graph, skipping edge", "label", labelName)
			continue
		}
		if err := node.Relate("HAS_LABEL", label); err != nil {
			return err
		}
	}

	// 4. Milestone by id.
	if issue.Milestone != nil {
		milestone, err := p.graph.Get(ctx, graph.Milestone,
			map[string]interface{}{"id": issue.Milestone.ID})
		if err != nil {
			return err
		}
		if milestone == nil {
			p.logger.Debug("milestone not in graph, skipping edge", "milestone_id", issue.Milestone.ID)
		} else if err := node.Relate("HAS_MILESTONE", milestone); err != nil {
			return err
		}
	}

	// 5. Task checklist counters.
	if issue.HasTasks && issue.TaskCompletionStatus != nil {
		if err := node.Set("task_count", issue.TaskCompletionStatus.Count); err != nil {
			return err
		}
		if err := node.Set("task_completed", issue.TaskCompletionStatus.CompletedCount); err != nil {
			return err
		}
	}

	// 6. Notes and award emoji, fetched per issue.
	err = p.attachDiscussion(ctx, node, issue.IID, noteSource{
		notes:     p.source.IssueNotes,
		noteEmoji: p.source.IssueNoteAwardEmoji,
		emoji:     p.source.IssueAwardEmoji,
	})
	if err != nil {
		return err
	}

	p.nodes = append(p.nodes, node)
	return nil
}
