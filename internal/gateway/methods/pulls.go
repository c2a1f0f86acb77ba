package methods

import (
	"context"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

const errHeadBranchRequired userError = "Head branch is required"

func (d *Deps) handleCreatePullRequest(ctx context.Context, req *gateway.Request) {
	const name = "github.pulls.create"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.CreatePullRequestPayload](req)
	switch {
	case p.RepositoryID == "":
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	case p.Title == "":
		d.reject(id, name, protocol.EventGitHubActionError, errTitleRequired)
		return
	case p.HeadBranch == "":
		d.reject(id, name, protocol.EventGitHubActionError, errHeadBranchRequired)
		return
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	pr, err := d.Host.CreatePullRequest(hctx, rec, repohost.PullRequestRequest{
		Title: p.Title,
		Body:  p.Body,
		Head:  p.HeadBranch,
		Base:  p.BaseBranch,
	})
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.mirrorPulls(ctx, id, rec.ID, []repohost.PullRequest{*pr})

	d.emit(id, protocol.EventPullRequestActionSuccess, map[string]any{
		"pull_request":  pr,
		"repository_id": rec.ID,
		"action":        protocol.ActionCreate,
	})
}

func (d *Deps) handleGetPullRequests(ctx context.Context, req *gateway.Request) {
	const name = "github.pulls.list"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.PullRequestsPayload](req)
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	pulls, err := d.Host.ListPullRequests(hctx, rec, p.State)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.mirrorPulls(ctx, id, rec.ID, pulls)

	d.emit(id, protocol.EventPullRequestsList, map[string]any{
		"pull_requests": pulls,
		"repository_id": rec.ID,
	})
}
