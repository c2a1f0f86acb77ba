package methods

import (
	"context"
	"errors"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// Every repository operation reports success, then the refreshed list, then
// any file tree cascade.

func (d *Deps) handleAddRepository(ctx context.Context, req *gateway.Request) {
	const name = "repository.add"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, req.DecodeErr)
		return
	}
	in := gateway.PayloadOf[gateway.AddRepositoryPayload](req).Repository
	in.ID = ""
	rec, err := in.Record(id)
	if err != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, err)
		return
	}
	if err := d.validate(ctx, rec); err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	sctx, cancel := d.storeCtx(ctx)
	saved, err := d.Store.UpsertRepository(sctx, rec)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	d.emit(id, protocol.EventRepositoryActionSuccess, map[string]any{
		"repository": saved.View(),
		"action":     protocol.ActionAdd,
	})
	if _, err := d.listRepositories(ctx, id); err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}
	if _, selected := d.Sessions.Selected(id); !selected {
		d.Sessions.SetSelected(id, saved.ID)
		d.fetchTree(ctx, id, saved)
	}
}

func (d *Deps) handleUpdateRepository(ctx context.Context, req *gateway.Request) {
	const name = "repository.update"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.UpdateRepositoryPayload](req)
	existing, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	in := p.Repository
	in.ID = existing.ID
	if in.Token == "" {
		in.Token = existing.Token
	}
	rec, err := in.Record(id)
	if err != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, err)
		return
	}
	if err := d.validate(ctx, rec); err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	sctx, cancel := d.storeCtx(ctx)
	saved, err := d.Store.UpsertRepository(sctx, rec)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	d.emit(id, protocol.EventRepositoryActionSuccess, map[string]any{
		"repository": saved.View(),
		"action":     protocol.ActionUpdate,
	})
	if _, err := d.listRepositories(ctx, id); err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}
	if selected, ok := d.Sessions.Selected(id); ok && selected == saved.ID {
		d.fetchTree(ctx, id, saved)
	}
}

func (d *Deps) handleDeleteRepository(ctx context.Context, req *gateway.Request) {
	const name = "repository.delete"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, req.DecodeErr)
		return
	}
	repoID := gateway.PayloadOf[gateway.RepositoryRef](req).RepositoryID
	if repoID == "" {
		d.reject(id, name, protocol.EventRepositoryActionError, errRepositoryIDRequired)
		return
	}

	sctx, cancel := d.storeCtx(ctx)
	err := d.Store.DeleteRepository(sctx, id, repoID)
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		err = errRepositoryNotFound
	}
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	d.emit(id, protocol.EventRepositoryActionSuccess, map[string]any{
		"repository_id": repoID,
		"action":        protocol.ActionDelete,
	})
	recs, err := d.listRepositories(ctx, id)
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	if selected, ok := d.Sessions.Selected(id); !ok || selected != repoID {
		return
	}
	if len(recs) > 0 {
		d.Sessions.SetSelected(id, recs[0].ID)
		d.fetchTree(ctx, id, &recs[0])
		return
	}
	d.Sessions.ClearSelected(id)
	d.emit(id, protocol.EventFileTreeData, map[string]any{
		"tree":       []any{},
		"repository": nil,
	})
}

func (d *Deps) handleSelectRepository(ctx context.Context, req *gateway.Request) {
	const name = "repository.select"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventRepositoryActionError, req.DecodeErr)
		return
	}
	repoID := gateway.PayloadOf[gateway.RepositoryRef](req).RepositoryID
	rec, err := d.repository(ctx, id, repoID)
	if err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}

	d.Sessions.SetSelected(id, rec.ID)
	d.emit(id, protocol.EventRepositoryActionSuccess, map[string]any{
		"repository_id": rec.ID,
		"action":        protocol.ActionSelect,
	})
	if _, err := d.listRepositories(ctx, id); err != nil {
		d.fail(id, name, protocol.EventRepositoryActionError, err)
		return
	}
	d.fetchTree(ctx, id, rec)
}
