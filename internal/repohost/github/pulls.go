package github

import (
	"context"
	"errors"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// CreatePullRequest opens Head into Base.
func (h *Host) CreatePullRequest(ctx context.Context, repo *store.RepositoryRecord, req repohost.PullRequestRequest) (*repohost.PullRequest, error) {
	if req.Title == "" || req.Head == "" {
		return nil, errors.New("pull request title and head branch are required")
	}
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	np := &gh.NewPullRequest{
		Title: gh.String(req.Title),
		Head:  gh.String(req.Head),
		Base:  gh.String(branchOr(req.Base, repo)),
	}
	if req.Body != "" {
		np.Body = gh.String(req.Body)
	}

	var pr *gh.PullRequest
	err = h.callOnce(ctx, repo, "create pull request", func() (*gh.Response, error) {
		p, resp, err := c.PullRequests.Create(ctx, repo.Owner, repo.Repo, np)
		pr = p
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := convertPull(pr)
	return &out, nil
}

// ListPullRequests lists pull requests in state (default "open").
func (h *Host) ListPullRequests(ctx context.Context, repo *store.RepositoryRecord, state string) ([]repohost.PullRequest, error) {
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = "open"
	}
	opts := &gh.PullRequestListOptions{State: state, ListOptions: gh.ListOptions{PerPage: 100}}

	out := []repohost.PullRequest{}
	for {
		var page []*gh.PullRequest
		var next int
		err := h.call(ctx, repo, "list pull requests", func() (*gh.Response, error) {
			prs, resp, err := c.PullRequests.List(ctx, repo.Owner, repo.Repo, opts)
			if err != nil {
				return resp, err
			}
			page, next = prs, resp.NextPage
			return resp, nil
		})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			out = append(out, convertPull(p))
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

func convertPull(p *gh.PullRequest) repohost.PullRequest {
	return repohost.PullRequest{
		ID:         p.GetID(),
		Number:     p.GetNumber(),
		Title:      p.GetTitle(),
		Body:       p.GetBody(),
		State:      p.GetState(),
		HTMLURL:    p.GetHTMLURL(),
		CreatedAt:  p.GetCreatedAt().Time,
		UpdatedAt:  p.GetUpdatedAt().Time,
		HeadBranch: p.GetHead().GetRef(),
		BaseBranch: p.GetBase().GetRef(),
	}
}
