package github

import (
	"context"
	"errors"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// ListBranches returns every branch of the repository.
func (h *Host) ListBranches(ctx context.Context, repo *store.RepositoryRecord) ([]repohost.Branch, error) {
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: 100}}

	out := []repohost.Branch{}
	for {
		var page []*gh.Branch
		var next int
		err := h.call(ctx, repo, "list branches", func() (*gh.Response, error) {
			bs, resp, err := c.Repositories.ListBranches(ctx, repo.Owner, repo.Repo, opts)
			if err != nil {
				return resp, err
			}
			page, next = bs, resp.NextPage
			return resp, nil
		})
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			out = append(out, repohost.Branch{
				Name:      b.GetName(),
				CommitSHA: b.GetCommit().GetSHA(),
				Protected: b.GetProtected(),
			})
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// CreateBranch points refs/heads/name at the head of base.
func (h *Host) CreateBranch(ctx context.Context, repo *store.RepositoryRecord, name, base string) (*repohost.Branch, error) {
	if name == "" {
		return nil, errors.New("branch name is required")
	}
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	base = branchOr(base, repo)

	var baseRef *gh.Reference
	err = h.call(ctx, repo, "get base ref", func() (*gh.Response, error) {
		ref, resp, err := c.Git.GetRef(ctx, repo.Owner, repo.Repo, "heads/"+base)
		baseRef = ref
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	sha := baseRef.GetObject().GetSHA()

	err = h.callOnce(ctx, repo, "create ref", func() (*gh.Response, error) {
		_, resp, err := c.Git.CreateRef(ctx, repo.Owner, repo.Repo, &gh.Reference{
			Ref:    gh.String("refs/heads/" + name),
			Object: &gh.GitObject{SHA: gh.String(sha)},
		})
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return &repohost.Branch{Name: name, CommitSHA: sha, BaseBranch: base}, nil
}
