package methods

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/gitchat/internal/agent"
	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// --- SUBMIT_CONFIG ---

// handleSubmitConfig stores the configuration, binds the agent credential and
// upserts every descriptor that passes host validation. Steps are not rolled
// back when a later one fails.
func (d *Deps) handleSubmitConfig(ctx context.Context, req *gateway.Request) {
	const name = "config.submit"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventConfigError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.SubmitConfigPayload](req)

	d.Sessions.SetConfig(id, req.Raw)
	sctx, cancel := d.storeCtx(ctx)
	err := d.Store.SetConnectionConfig(sctx, id, req.Raw)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventConfigError, err)
		return
	}

	if d.Agent != nil {
		actx, cancel := d.agentCtx(ctx)
		err := d.Agent.Configure(actx, id, p.GeminiToken)
		cancel()
		if err != nil {
			d.fail(id, name, protocol.EventConfigError, err)
			return
		}
	}

	for i, in := range p.Repositories {
		rec, err := in.Record(id)
		if err == nil {
			err = d.validate(ctx, rec)
		}
		if err != nil {
			if d.Config.ConfigBatchPolicy == config.BatchPolicyAbort {
				d.fail(id, name, protocol.EventConfigError, fmt.Errorf("repository %d (%s): %w", i, in.Name, err))
				return
			}
			slog.Warn(name+".skip_repository", "client", id, "repository", in.Name, "error", err)
			continue
		}
		sctx, cancel := d.storeCtx(ctx)
		_, err = d.Store.UpsertRepository(sctx, rec)
		cancel()
		if err != nil {
			d.fail(id, name, protocol.EventConfigError, err)
			return
		}
	}

	recs, err := d.listRepositories(ctx, id)
	if err != nil {
		d.fail(id, name, protocol.EventConfigError, err)
		return
	}
	if _, selected := d.Sessions.Selected(id); !selected && len(recs) > 0 {
		d.Sessions.SetSelected(id, recs[0].ID)
		d.fetchTree(ctx, id, &recs[0])
	}
	d.emit(id, protocol.EventConfigSuccess, struct{}{})
}

// --- FETCH_FILES ---

func (d *Deps) handleFetchFiles(ctx context.Context, req *gateway.Request) {
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, "files.fetch", protocol.EventFileTreeError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.RepositoryRef](req)
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, "files.fetch", protocol.EventFileTreeError, err)
		return
	}
	d.fetchTree(ctx, id, rec)
}

// fetchTree lists rec's tree, selects rec and emits the tree between a typing
// pair. It is also the cascade target of select, add, update, delete and config.
func (d *Deps) fetchTree(ctx context.Context, clientID string, rec *store.RepositoryRecord) {
	d.emit(clientID, protocol.EventAgentTyping, protocol.TypingPayload{IsTyping: true})
	defer d.emit(clientID, protocol.EventAgentTyping, protocol.TypingPayload{IsTyping: false})

	hctx, cancel := d.hostCtx(ctx)
	defer cancel()
	tree, err := d.Host.ListTree(hctx, rec)
	if err != nil {
		d.fail(clientID, "files.fetch", protocol.EventFileTreeError, err)
		return
	}

	d.Sessions.SetSelected(clientID, rec.ID)
	view := rec.View()
	d.emit(clientID, protocol.EventFileTreeData, map[string]any{
		"tree":       tree,
		"repository": &view,
	})
}

// --- SEND_CHAT_MESSAGE ---

// handleSendChat always emits exactly one chat message between a typing pair
// for non-empty text.
func (d *Deps) handleSendChat(ctx context.Context, req *gateway.Request) {
	const name = "chat.send"
	id := req.ClientID
	if req.DecodeErr != nil {
		slog.Warn(name, "client", id, "error", req.DecodeErr)
		return
	}
	text := gateway.PayloadOf[gateway.ChatPayload](req).Text
	if strings.TrimSpace(text) == "" {
		return
	}

	d.appendMessage(ctx, store.NewChatMessage(id, store.SenderUser, text))

	d.emit(id, protocol.EventAgentTyping, protocol.TypingPayload{IsTyping: true})
	defer d.emit(id, protocol.EventAgentTyping, protocol.TypingPayload{IsTyping: false})

	reply, err := d.respond(ctx, id, text)
	var msg *store.ChatMessage
	if err != nil {
		slog.Error(name, "client", id, "error", err)
		msg = store.NewChatMessage(id, store.SenderSystem, "Error processing message: "+err.Error())
	} else {
		msg = store.NewChatMessage(id, store.SenderAgent, reply)
	}
	d.appendMessage(ctx, msg)
	d.emit(id, protocol.EventNewChatMessage, msg)
}

func (d *Deps) respond(ctx context.Context, clientID, text string) (string, error) {
	if d.Agent == nil {
		return "", agent.ErrNotConfigured
	}
	cc := agent.ChatContext{Config: agent.PublicConfig(d.Sessions.Config(clientID))}
	if repoID, ok := d.Sessions.Selected(clientID); ok {
		rec, err := d.repository(ctx, clientID, repoID)
		if err != nil {
			return "", err
		}
		view := rec.View()
		cc.Repository = &view
	}

	actx, cancel := d.agentCtx(ctx)
	defer cancel()
	return d.Agent.Respond(actx, clientID, text, cc)
}

// appendMessage persists msg. History is best effort: a failed write is
// logged and the exchange continues.
func (d *Deps) appendMessage(ctx context.Context, msg *store.ChatMessage) {
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	if err := d.Store.AppendMessage(sctx, msg); err != nil {
		slog.Error("chat.persist", "client", msg.ClientID, "sender", msg.Sender, "error", err)
	}
}
