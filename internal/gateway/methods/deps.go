// Package methods implements the inbound operations of the chat gateway.
// Every handler validates its payload, calls its collaborators under a
// bounded timeout and reports the outcome to the client as events.
package methods

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nextlevelbuilder/gitchat/internal/agent"
	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// Deps is everything a handler may touch.
type Deps struct {
	Sessions *gateway.Registry
	Store    store.Store
	Host     repohost.Host
	Agent    agent.Gateway
	Config   config.GatewayConfig
}

// Register installs a handler for every operation on router and releases
// per-client agent state when a session closes.
func Register(router *gateway.Router, d *Deps) {
	router.Register(gateway.OpSubmitConfig, d.handleSubmitConfig)
	router.Register(gateway.OpFetchFiles, d.handleFetchFiles)
	router.Register(gateway.OpSendChat, d.handleSendChat)

	router.Register(gateway.OpAddRepository, d.handleAddRepository)
	router.Register(gateway.OpUpdateRepository, d.handleUpdateRepository)
	router.Register(gateway.OpDeleteRepository, d.handleDeleteRepository)
	router.Register(gateway.OpSelectRepository, d.handleSelectRepository)

	router.Register(gateway.OpGetIssues, d.handleGetIssues)
	router.Register(gateway.OpGetAssignedIssues, d.handleGetAssignedIssues)
	router.Register(gateway.OpCreateIssue, d.handleCreateIssue)

	router.Register(gateway.OpGetBranches, d.handleGetBranches)
	router.Register(gateway.OpCreateBranch, d.handleCreateBranch)

	router.Register(gateway.OpPushFile, d.handlePushFile)
	router.Register(gateway.OpPushFiles, d.handlePushFiles)
	router.Register(gateway.OpGetFileContent, d.handleGetFileContent)

	router.Register(gateway.OpCreatePullRequest, d.handleCreatePullRequest)
	router.Register(gateway.OpGetPullRequests, d.handleGetPullRequests)

	if d.Agent != nil {
		d.Sessions.OnClose(d.Agent.Forget)
	}
}

// userError is a validation failure whose text is shown to the client verbatim.
type userError string

func (e userError) Error() string { return string(e) }

const (
	errRepositoryIDRequired userError = "Repository ID is required"
	errRepositoryNotFound   userError = "Repository not found"
	errInvalidRepository    userError = "Invalid repository or unable to access with provided token"
)

func (d *Deps) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Config.StoreTimeout())
}

func (d *Deps) hostCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Config.HostTimeout())
}

func (d *Deps) agentCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Config.AgentTimeout())
}

func (d *Deps) emit(clientID, eventType string, payload interface{}) {
	d.Sessions.SendEvent(clientID, eventType, payload)
}

// fail logs err under name and reports it with eventType.
func (d *Deps) fail(clientID, name, eventType string, err error) {
	var ue userError
	if errors.As(err, &ue) {
		d.reject(clientID, name, eventType, err)
		return
	}
	slog.Error(name, "client", clientID, "error", err)
	d.Sessions.SendError(clientID, eventType, err.Error())
}

// reject reports a validation failure. Nothing was attempted, so it is not an error log.
func (d *Deps) reject(clientID, name, eventType string, err error) {
	slog.Warn(name, "client", clientID, "error", err)
	d.Sessions.SendError(clientID, eventType, err.Error())
}

// repository loads the client's token-bearing descriptor.
func (d *Deps) repository(ctx context.Context, clientID, id string) (*store.RepositoryRecord, error) {
	if id == "" {
		return nil, errRepositoryIDRequired
	}
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	rec, err := d.Store.GetRepository(sctx, clientID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errRepositoryNotFound
	}
	return rec, err
}

// listRepositories emits REPOSITORIES_LIST and returns the records it listed.
func (d *Deps) listRepositories(ctx context.Context, clientID string) ([]store.RepositoryRecord, error) {
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	recs, err := d.Store.ListRepositories(sctx, clientID)
	if err != nil {
		return nil, err
	}
	d.emit(clientID, protocol.EventRepositoriesList, map[string]any{
		"repositories": store.Views(recs),
	})
	return recs, nil
}

// validate asks the host whether rec's credential can reach it.
func (d *Deps) validate(ctx context.Context, rec *store.RepositoryRecord) error {
	hctx, cancel := d.hostCtx(ctx)
	defer cancel()
	if err := d.Host.ValidateAccess(hctx, rec); err != nil {
		if errors.Is(err, repohost.ErrAccessDenied) || errors.Is(err, repohost.ErrNotFound) {
			return errInvalidRepository
		}
		return err
	}
	return nil
}
