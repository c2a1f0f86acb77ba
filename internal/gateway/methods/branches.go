package methods

import (
	"context"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

const errBranchNameRequired userError = "Branch name is required"

func (d *Deps) handleGetBranches(ctx context.Context, req *gateway.Request) {
	const name = "github.branches.list"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	rec, err := d.repository(ctx, id, gateway.PayloadOf[gateway.RepositoryRef](req).RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	if err := d.emitBranches(ctx, id, rec); err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
	}
}

// handleCreateBranch creates the branch and re-emits the branch list.
func (d *Deps) handleCreateBranch(ctx context.Context, req *gateway.Request) {
	const name = "github.branches.create"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.CreateBranchPayload](req)
	if p.RepositoryID == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	}
	if p.BranchName == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errBranchNameRequired)
		return
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	branch, err := d.Host.CreateBranch(hctx, rec, p.BranchName, p.BaseBranch)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	d.emit(id, protocol.EventBranchActionSuccess, map[string]any{
		"branch":        branch,
		"repository_id": rec.ID,
		"action":        protocol.ActionCreate,
	})
	if err := d.emitBranches(ctx, id, rec); err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
	}
}

func (d *Deps) emitBranches(ctx context.Context, clientID string, rec *store.RepositoryRecord) error {
	hctx, cancel := d.hostCtx(ctx)
	defer cancel()
	branches, err := d.Host.ListBranches(hctx, rec)
	if err != nil {
		return err
	}
	d.emit(clientID, protocol.EventBranchesList, map[string]any{
		"branches":      branches,
		"repository_id": rec.ID,
	})
	return nil
}
