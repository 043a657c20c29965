package pipeline

import (
	"context"
	"regexp"
	"strconv"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// issueBranchPattern recognizes branches named after the issue they
// belong to, e.g. "42-fix-login".
var issueBranchPattern = regexp.MustCompile(`^(\d+)-.+$`)

// MergeRequestPipeline loads the project's merge requests together
// with their approvals, change diffs, notes and award emoji. User
// references are upserted by id so merge requests of former members
// keep their edges.
type MergeRequestPipeline struct {
	base
	mergeRequests []*gitlab.BasicMergeRequest
}

// NewMergeRequestPipeline creates the merge request pipeline.
func NewMergeRequestPipeline(deps Deps) Pipeline {
	return &MergeRequestPipeline{base: newBase("MergeRequest", graph.MergeRequest, deps)}
}

func (p *MergeRequestPipeline) Request(ctx context.Context) (int, error) {
	mergeRequests, err := p.source.MergeRequests(ctx)
	if err != nil {
		return 0, err
	}
	p.mergeRequests = mergeRequests
	return len(mergeRequests), nil
}

func (p *MergeRequestPipeline) Transform(ctx context.Context) error {
	for _, mergeRequest := range p.mergeRequests {
		if err := p.transformMergeRequest(ctx, mergeRequest); err != nil {
			return err
		}
	}
	return nil
}

func (p *MergeRequestPipeline) transformMergeRequest(ctx context.Context, mergeRequest *gitlab.BasicMergeRequest) error {
	// 1. Create the merge request node itself.
	node, err := p.graph.Create(ctx, graph.MergeRequest, mergeRequestBag(mergeRequest))
	if err != nil {
		return err
	}

	// 2. Involved users. All upserted by id except the singular
	// assignee, which only links when the user node already exists.
	if mergeRequest.Author != nil {
		if err := p.ensureUser(ctx, node, "CREATED_BY", mergeRequest.Author.ID); err != nil {
			return err
		}
	}
	if mergeRequest.MergedBy != nil {
		if err := p.ensureUser(ctx, node, "MERGED_BY", mergeRequest.MergedBy.ID); err != nil {
			return err
		}
	}
	for _, assignee := range mergeRequest.Assignees {
		if err := p.ensureUser(ctx, node, "WAS_ASSIGNED", assignee.ID); err != nil {
			return err
		}
	}
	if mergeRequest.Assignee != nil {
		if err := p.relateUser(ctx, node, "IS_ASSIGNED", mergeRequest.Assignee.ID); err != nil {
			return err
		}
	}
	if mergeRequest.ClosedBy != nil {
		if err := p.ensureUser(ctx, node, "CLOSED_BY", mergeRequest.ClosedBy.ID); err != nil {
			return err
		}
	}

	// 3. Labels by exact name.
	for _, labelName := range mergeRequest.Labels {
		label, err := p.graph.Get(ctx, graph.Label, map[string]interface{}{"name": labelName})
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

	// 4. Approval state from the approvals sub-resource.
	approvals, err := p.source.Approvals(ctx, mergeRequest.IID)
	if err != nil {
		return err
	}
	if approvals != nil {
		for _, approver := range approvals.ApprovedBy {
			if approver.User == nil {
				continue
			}
			if err := p.ensureUser(ctx, node, "APPROVED_BY", approver.User.ID); err != nil {
				return err
			}
		}
		if err := node.Set("approvals_required", approvals.ApprovalsRequired); err != nil {
			return err
		}
		if err := node.Set("approvals_left", approvals.ApprovalsLeft); err != nil {
			return err
		}
		if err := node.Set("approved", approvals.Approved); err != nil {
			return err
		}
	}

	// 5. Change diffs. Diff records have no identity of their own, each
	// one becomes a fresh Change node pushed right away.
	detail, diffs, err := p.source.Changes(ctx, mergeRequest.IID)
	if err != nil {
		return err
	}
	if detail != nil {
		if detail.ChangesCount != "" {
			if err := node.Set("changes_count", detail.ChangesCount); err != nil {
				return err
			}
		}
		if detail.MergeError != "" {
			if err := node.Set("merge_error", detail.MergeError); err != nil {
				return err
			}
		}
	}
	for _, diff := range diffs {
		change, err := p.graph.Create(ctx, graph.Change, changeBag(diff))
		if err != nil {
			return err
		}
		if err := node.Relate("HAS_CHANGE", change); err != nil {
			return err
		}
		if err := p.graph.Push(ctx, change); err != nil {
			return err
		}
	}

	// 6. Milestone, upserted by id.
	if mergeRequest.Milestone != nil {
		milestone, err := p.graph.GetOrCreate(ctx, graph.Milestone, mergeRequest.Milestone.ID, nil)
		if err != nil {
			return err
		}
		if err := node.Relate("HAS_MILESTONE", milestone); err != nil {
			return err
		}
	}

	// 7. Commit linkage by sha. The commit pipeline fills the nodes in
	// later.
	if mergeRequest.MergeCommitSHA != "" {
		commit, err := p.graph.GetOrCreate(ctx, graph.Commit, mergeRequest.MergeCommitSHA, nil)
		if err != nil {
			return err
		}
		if err := node.Relate("HAS_MERGE_COMMIT", commit); err != nil {
			return err
		}
	}
	if mergeRequest.SHA != "" {
		commit, err := p.graph.GetOrCreate(ctx, graph.Commit, mergeRequest.SHA, nil)
		if err != nil {
			return err
		}
		if err := node.Relate("IS_LATEST_COMMIT", commit); err != nil {
			return err
		}
	}

	// 8. Issue back-reference derived from the branch name.
	if err := p.relateIssueFromBranch(ctx, node, mergeRequest.SourceBranch); err != nil {
		return err
	}

	// 9. Task checklist counters.
	if mergeRequest.TaskCompletionStatus != nil {
		if err := node.Set("task_count", mergeRequest.TaskCompletionStatus.Count); err != nil {
			return err
		}
		if err := node.Set("task_completed", mergeRequest.TaskCompletionStatus.CompletedCount); err != nil {
			return err
		}
	}

	// 10. Notes and award emoji, fetched per merge request.
	err = p.attachDiscussion(ctx, node, mergeRequest.IID, noteSource{
		notes:     p.source.MergeRequestNotes,
		noteEmoji: p.source.MergeRequestNoteAwardEmoji,
		emoji:     p.source.MergeRequestAwardEmoji,
	})
	if err != nil {
		return err
	}

	p.nodes = append(p.nodes, node)
	return nil
}

// relateIssueFromBranch links a merge request to the issue its source
// branch was created from, when the branch follows the "<iid>-title"
// convention and the issue is in the graph.
func (p *MergeRequestPipeline) relateIssueFromBranch(ctx context.Context, node *graph.Node, branch string) error {
	m := issueBranchPattern.FindStringSubmatch(branch)
	if m == nil {
		return nil
	}

	iid, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}

	issue, err := p.graph.Get(ctx, graph.Issue, map[string]interface{}{"iid": iid})
	if err != nil {
		return err
	}
	if issue == nil {
		p.logger.Debug("no issue for branch prefix, skipping edge", "branch", branch, "iid", iid)
		return nil
	}
	return node.Relate("IS_RELATED", issue)
}
