package gitlab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

// perPage is the page size for every list call. GitLab caps pages at
// 100 records.
const perPage = 100

// defaultRequestsPerSecond stays well below the gitlab.com limit for
// authenticated API traffic.
const defaultRequestsPerSecond = 10

// Client wraps the GitLab API for a single project with rate limiting
// and full pagination. Every list method walks all pages before
// returning, so callers always see the complete record set.
type Client struct {
	api         *gitlab.Client
	project     string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a client scoped to one project, identified by its
// numeric id or its namespace/name path. Credentials are verified with
// a current-user probe so a bad token or endpoint surfaces before any
// pipeline runs.
func NewClient(ctx context.Context, baseURL, token, project string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.ConfigurationError("gitlab url is not set")
	}
	if token == "" {
		return nil, errors.ConfigurationError("gitlab token is not set")
	}
	if project == "" {
		return nil, errors.ConfigurationError("gitlab project id is not set")
	}

	api, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, errors.SeverityFatal,
			fmt.Sprintf("failed to create gitlab client for %s", baseURL))
	}

	c := &Client{
		api:         api,
		project:     project,
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		logger:      slog.Default().With("component", "gitlab"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	user, _, err := c.api.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.SourceUnavailablef(err, "failed to connect to gitlab at %s", baseURL)
	}
	c.logger.Debug("authenticated against gitlab", "url", baseURL, "user", user.Username)

	return c, nil
}

// Project fetches the configured project.
func (c *Client) Project(ctx context.Context) (*gitlab.Project, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	project, _, err := c.api.Projects.GetProject(c.project, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.SourceUnavailablef(err, "failed to fetch project %s", c.project)
	}
	return project, nil
}

// ProjectUsers lists every member of the project.
func (c *Client) ProjectUsers(ctx context.Context) ([]*gitlab.ProjectUser, error) {
	opts := &gitlab.ListProjectUserOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.ProjectUser
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		users, resp, err := c.api.Projects.ListProjectsUsers(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list users for project %s", c.project)
		}
		all = append(all, users...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Labels lists the project's labels. The issue and merge request
// counters only appear in the payload when asked for.
func (c *Client) Labels(ctx context.Context) ([]*gitlab.Label, error) {
	opts := &gitlab.ListLabelsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
		WithCounts:  gitlab.Ptr(true),
	}

	var all []*gitlab.Label
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		labels, resp, err := c.api.Labels.ListLabels(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list labels for project %s", c.project)
		}
		all = append(all, labels...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Milestones lists the project's milestones.
func (c *Client) Milestones(ctx context.Context) ([]*gitlab.Milestone, error) {
	opts := &gitlab.ListMilestonesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.Milestone
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		milestones, resp, err := c.api.Milestones.ListMilestones(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list milestones for project %s", c.project)
		}
		all = append(all, milestones...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Issues lists every issue of the project, regardless of state.
func (c *Client) Issues(ctx context.Context) ([]*gitlab.Issue, error) {
	opts := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.Issue
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		issues, resp, err := c.api.Issues.ListProjectIssues(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list issues for project %s", c.project)
		}
		all = append(all, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// MergeRequests lists every merge request of the project. The list
// endpoint returns the reduced record form, the change-level fields
// come from Changes.
func (c *Client) MergeRequests(ctx context.Context) ([]*gitlab.BasicMergeRequest, error) {
	opts := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.BasicMergeRequest
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		mergeRequests, resp, err := c.api.MergeRequests.ListProjectMergeRequests(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list merge requests for project %s", c.project)
		}
		all = append(all, mergeRequests...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Commits lists the project's commits, on the default branch or on
// refName when given.
func (c *Client) Commits(ctx context.Context, refName string) ([]*gitlab.Commit, error) {
	opts := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}
	if refName != "" {
		opts.RefName = gitlab.Ptr(refName)
	}

	var all []*gitlab.Commit
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		commits, resp, err := c.api.Commits.ListCommits(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list commits for project %s", c.project)
		}
		all = append(all, commits...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// IssueNotes lists the notes on one issue.
func (c *Client) IssueNotes(ctx context.Context, issueIID int64) ([]*gitlab.Note, error) {
	opts := &gitlab.ListIssueNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.Note
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		notes, resp, err := c.api.Notes.ListIssueNotes(c.project, issueIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list notes for issue %d", issueIID)
		}
		all = append(all, notes...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// MergeRequestNotes lists the notes on one merge request.
func (c *Client) MergeRequestNotes(ctx context.Context, mergeRequestIID int64) ([]*gitlab.Note, error) {
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}

	var all []*gitlab.Note
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		notes, resp, err := c.api.Notes.ListMergeRequestNotes(c.project, mergeRequestIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list notes for merge request %d", mergeRequestIID)
		}
		all = append(all, notes...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// IssueAwardEmoji lists the award emoji on one issue.
func (c *Client) IssueAwardEmoji(ctx context.Context, issueIID int64) ([]*gitlab.AwardEmoji, error) {
	opts := &gitlab.ListAwardEmojiOptions{}
	opts.PerPage = perPage

	var all []*gitlab.AwardEmoji
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		emoji, resp, err := c.api.AwardEmoji.ListIssueAwardEmoji(c.project, issueIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list award emoji for issue %d", issueIID)
		}
		all = append(all, emoji...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// MergeRequestAwardEmoji lists the award emoji on one merge request.
func (c *Client) MergeRequestAwardEmoji(ctx context.Context, mergeRequestIID int64) ([]*gitlab.AwardEmoji, error) {
	opts := &gitlab.ListAwardEmojiOptions{}
	opts.PerPage = perPage

	var all []*gitlab.AwardEmoji
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		emoji, resp, err := c.api.AwardEmoji.ListMergeRequestAwardEmoji(c.project, mergeRequestIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list award emoji for merge request %d", mergeRequestIID)
		}
		all = append(all, emoji...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// IssueNoteAwardEmoji lists the award emoji on one note of an issue.
func (c *Client) IssueNoteAwardEmoji(ctx context.Context, issueIID, noteID int64) ([]*gitlab.AwardEmoji, error) {
	opts := &gitlab.ListAwardEmojiOptions{}
	opts.PerPage = perPage

	var all []*gitlab.AwardEmoji
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		emoji, resp, err := c.api.AwardEmoji.ListIssuesAwardEmojiOnNote(c.project, issueIID, noteID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list award emoji for note %d on issue %d", noteID, issueIID)
		}
		all = append(all, emoji...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// MergeRequestNoteAwardEmoji lists the award emoji on one note of a
// merge request.
func (c *Client) MergeRequestNoteAwardEmoji(ctx context.Context, mergeRequestIID, noteID int64) ([]*gitlab.AwardEmoji, error) {
	opts := &gitlab.ListAwardEmojiOptions{}
	opts.PerPage = perPage

	var all []*gitlab.AwardEmoji
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		emoji, resp, err := c.api.AwardEmoji.ListMergeRequestAwardEmojiOnNote(c.project, mergeRequestIID, noteID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errors.SourceUnavailablef(err, "failed to list award emoji for note %d on merge request %d", noteID, mergeRequestIID)
		}
		all = append(all, emoji...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// Approvals fetches the approval state of one merge request.
func (c *Client) Approvals(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequestApprovals, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	approvals, _, err := c.api.MergeRequestApprovals.GetConfiguration(c.project, mergeRequestIID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errors.SourceUnavailablef(err, "failed to fetch approvals for merge request %d", mergeRequestIID)
	}
	return approvals, nil
}

// Changes fetches the change-level view of one merge request: the full
// record, which carries changes_count and merge_error, plus every diff.
func (c *Client) Changes(ctx context.Context, mergeRequestIID int64) (*gitlab.MergeRequest, []*gitlab.MergeRequestDiff, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	mergeRequest, _, err := c.api.MergeRequests.GetMergeRequest(c.project, mergeRequestIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, nil, errors.SourceUnavailablef(err, "failed to fetch merge request %d", mergeRequestIID)
	}

	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: perPage},
	}
	var diffs []*gitlab.MergeRequestDiff
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}

		page, resp, err := c.api.MergeRequests.ListMergeRequestDiffs(c.project, mergeRequestIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, nil, errors.SourceUnavailablef(err, "failed to list diffs for merge request %d", mergeRequestIID)
		}
		diffs = append(diffs, page...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return mergeRequest, diffs, nil
}
