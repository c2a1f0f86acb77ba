package github

import (
	"context"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// ListIssues returns the repository's issues, excluding pull requests.
func (h *Host) ListIssues(ctx context.Context, repo *store.RepositoryRecord, filter repohost.IssueFilter) ([]repohost.Issue, error) {
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	opts := &gh.IssueListByRepoOptions{
		State:       filter.State,
		Assignee:    filter.Assignee,
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if opts.State == "" {
		opts.State = "open"
	}

	out := []repohost.Issue{}
	for {
		var page []*gh.Issue
		var next int
		err := h.call(ctx, repo, "list issues", func() (*gh.Response, error) {
			issues, resp, err := c.Issues.ListByRepo(ctx, repo.Owner, repo.Repo, opts)
			if err != nil {
				return resp, err
			}
			page, next = issues, resp.NextPage
			return resp, nil
		})
		if err != nil {
			return nil, err
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, convertIssue(is))
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// CreateIssue opens an issue.
func (h *Host) CreateIssue(ctx context.Context, repo *store.RepositoryRecord, req repohost.IssueRequest) (*repohost.Issue, error) {
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	ir := &gh.IssueRequest{Title: gh.String(req.Title)}
	if req.Body != "" {
		ir.Body = gh.String(req.Body)
	}
	if len(req.Labels) > 0 {
		ir.Labels = &req.Labels
	}
	if len(req.Assignees) > 0 {
		ir.Assignees = &req.Assignees
	}

	var created *gh.Issue
	err = h.callOnce(ctx, repo, "create issue", func() (*gh.Response, error) {
		is, resp, err := c.Issues.Create(ctx, repo.Owner, repo.Repo, ir)
		created = is
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	is := convertIssue(created)
	return &is, nil
}

func convertIssue(is *gh.Issue) repohost.Issue {
	out := repohost.Issue{
		ID:        is.GetID(),
		Number:    is.GetNumber(),
		Title:     is.GetTitle(),
		Body:      is.GetBody(),
		State:     is.GetState(),
		HTMLURL:   is.GetHTMLURL(),
		CreatedAt: is.GetCreatedAt().Time,
		UpdatedAt: is.GetUpdatedAt().Time,
		Labels:    []repohost.Label{},
		Assignees: []repohost.User{},
	}
	for _, l := range is.Labels {
		out.Labels = append(out.Labels, repohost.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	for _, u := range is.Assignees {
		out.Assignees = append(out.Assignees, repohost.User{Login: u.GetLogin(), AvatarURL: u.GetAvatarURL()})
	}
	return out
}
