package tools

import (
	"context"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// Tool execution context keys. Values are injected by the agent per turn and
// read by tools during Execute, so one tool instance serves every client.

type toolContextKey string

const (
	ctxClientID   toolContextKey = "tool_client_id"
	ctxRepository toolContextKey = "tool_repository"
)

func WithToolClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ctxClientID, clientID)
}

func ToolClientIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxClientID).(string)
	return v
}

// WithToolRepository binds the repository tools act on.
func WithToolRepository(ctx context.Context, repo *store.RepositoryRecord) context.Context {
	return context.WithValue(ctx, ctxRepository, repo)
}

func ToolRepositoryFromCtx(ctx context.Context) *store.RepositoryRecord {
	v, _ := ctx.Value(ctxRepository).(*store.RepositoryRecord)
	return v
}
