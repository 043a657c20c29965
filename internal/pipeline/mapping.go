package pipeline

import (
	"time"

	"github.com/google/uuid"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// The bag builders translate API records into the property bags the
// graph schema declares. Values the API did not send stay nil and are
// dropped by the repository, so the graph never stores placeholders.

// timestamp renders an API datetime in RFC 3339 UTC, or nil when the
// source field was absent.
func timestamp(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// date renders an API calendar date, or nil when the source field was
// absent.
func date(t *gitlab.ISOTime) interface{} {
	if t == nil {
		return nil
	}
	return time.Time(*t).Format("2006-01-02")
}

func projectBag(project *gitlab.Project) map[string]interface{} {
	bag := map[string]interface{}{
		"id":               project.ID,
		"name":             project.Name,
		"description":      project.Description,
		"default_branch":   project.DefaultBranch,
		"created_at":       timestamp(project.CreatedAt),
		"last_activity_at": timestamp(project.LastActivityAt),
	}
	if project.Namespace != nil {
		bag["namespace_name"] = project.Namespace.Name
	}
	return bag
}

func userBag(user *gitlab.ProjectUser) map[string]interface{} {
	return map[string]interface{}{
		"id":       user.ID,
		"name":     user.Name,
		"username": user.Username,
		"state":    user.State,
	}
}

// labelBag keeps the historical *_requests_count property names so
// existing graphs stay queryable with the same keys.
func labelBag(label *gitlab.Label) map[string]interface{} {
	return map[string]interface{}{
		"id":                           label.ID,
		"name":                         label.Name,
		"color":                        label.Color,
		"description":                  label.Description,
		"open_merge_requests_count":    label.OpenMergeRequestsCount,
		"open_issues_requests_count":   label.OpenIssuesCount,
		"closed_issues_requests_count": label.ClosedIssuesCount,
		"is_project_label":             label.IsProjectLabel,
	}
}

func milestoneBag(milestone *gitlab.Milestone) map[string]interface{} {
	return map[string]interface{}{
		"id":          milestone.ID,
		"iid":         milestone.IID,
		"title":       milestone.Title,
		"description": milestone.Description,
		"state":       milestone.State,
		"created_at":  timestamp(milestone.CreatedAt),
		"updated_at":  timestamp(milestone.UpdatedAt),
		"due_date":    date(milestone.DueDate),
		"start_date":  date(milestone.StartDate),
	}
}

func noteBag(note *gitlab.Note) map[string]interface{} {
	bag := map[string]interface{}{
		"id":         note.ID,
		"body":       note.Body,
		"attachment": note.Attachment,
		"system":     note.System,
		"resolvable": note.Resolvable,
		"created_at": timestamp(note.CreatedAt),
		"updated_at": timestamp(note.UpdatedAt),
	}
	// Regular comments carry no type, only DiffNote and DiscussionNote
	// are marked.
	if note.Type != "" {
		bag["type"] = string(note.Type)
	}
	return bag
}

func issueBag(issue *gitlab.Issue) map[string]interface{} {
	return map[string]interface{}{
		"id":                   issue.ID,
		"iid":                  issue.IID,
		"title":                issue.Title,
		"description":          issue.Description,
		"state":                issue.State,
		"weight":               issue.Weight,
		"merge_requests_count": issue.MergeRequestCount,
		"created_at":           timestamp(issue.CreatedAt),
		"updated_at":           timestamp(issue.UpdatedAt),
		"closed_at":            timestamp(issue.ClosedAt),
		"confidential":         issue.Confidential,
		"due_date":             date(issue.DueDate),
		"upvotes":              issue.Upvotes,
		"downvotes":            issue.Downvotes,
		"has_tasks":            issue.HasTasks,
	}
}

// mergeRequestBag maps the list form of a merge request. The counters
// from the approvals endpoint and the changes fetch are set on the
// node afterwards, during the transform.
func mergeRequestBag(mergeRequest *gitlab.BasicMergeRequest) map[string]interface{} {
	return map[string]interface{}{
		"id":                           mergeRequest.ID,
		"iid":                          mergeRequest.IID,
		"title":                        mergeRequest.Title,
		"state":                        mergeRequest.State,
		"description":                  mergeRequest.Description,
		"work_in_progress":             mergeRequest.Draft,
		"merge_when_pipeline_succeeds": mergeRequest.MergeWhenPipelineSucceeds,
		"force_remove_source_branch":   mergeRequest.ForceRemoveSourceBranch,
		"should_remove_source_branch":  mergeRequest.ShouldRemoveSourceBranch,
		"merge_status":                 mergeRequest.MergeStatus,
		"sha":                          mergeRequest.SHA,
		"merge_commit_sha":             mergeRequest.MergeCommitSHA,
		"squash":                       mergeRequest.Squash,
		"created_at":                   timestamp(mergeRequest.CreatedAt),
		"updated_at":                   timestamp(mergeRequest.UpdatedAt),
		"merged_at":                    timestamp(mergeRequest.MergedAt),
		"closed_at":                    timestamp(mergeRequest.ClosedAt),
		"target_branch":                mergeRequest.TargetBranch,
		"source_branch":                mergeRequest.SourceBranch,
		"user_notes_count":             mergeRequest.UserNotesCount,
		"upvotes":                      mergeRequest.Upvotes,
		"downvotes":                    mergeRequest.Downvotes,
	}
}

func commitBag(commit *gitlab.Commit) map[string]interface{} {
	return map[string]interface{}{
		"id":              commit.ID,
		"short_id":        commit.ShortID,
		"title":           commit.Title,
		"message":         commit.Message,
		"created_at":      timestamp(commit.CreatedAt),
		"author_name":     commit.AuthorName,
		"author_email":    commit.AuthorEmail,
		"authored_date":   timestamp(commit.AuthoredDate),
		"committer_name":  commit.CommitterName,
		"committer_email": commit.CommitterEmail,
		"committed_date":  timestamp(commit.CommittedDate),
	}
}

func awardEmojiBag(award *gitlab.AwardEmoji) map[string]interface{} {
	return map[string]interface{}{
		"id":         award.ID,
		"name":       award.Name,
		"created_at": timestamp(award.CreatedAt),
		"updated_at": timestamp(award.UpdatedAt),
	}
}

// changeBag synthesizes the primary key: the API does not identify
// individual diff records, so every run stores fresh Change nodes.
func changeBag(diff *gitlab.MergeRequestDiff) map[string]interface{} {
	return map[string]interface{}{
		"id":           uuid.NewString(),
		"old_path":     diff.OldPath,
		"new_path":     diff.NewPath,
		"a_mode":       diff.AMode,
		"b_mode":       diff.BMode,
		"new_file":     diff.NewFile,
		"renamed_file": diff.RenamedFile,
		"deleted_file": diff.DeletedFile,
		"diff":         diff.Diff,
	}
}
