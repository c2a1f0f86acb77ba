package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/gitchat/internal/providers"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/internal/tools"
)

// ErrToolLoop is returned when the model keeps calling tools past the limit.
var ErrToolLoop = errors.New("agent did not finish within the tool-call limit")

// Respond runs one think/act/observe cycle: history plus the new message go to
// the model, requested tools run against the selected repository, and the
// loop ends on the first reply without tool calls.
func (a *Agent) Respond(ctx context.Context, clientID, text string, cc ChatContext) (reply string, err error) {
	p, ok := a.provider(clientID)
	if !ok {
		return "", ErrNotConfigured
	}

	ctx, span := a.tracer.Start(ctx, "agent.respond", trace.WithAttributes(
		attribute.String("client.id", clientID),
		attribute.String("llm.provider", p.Name()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	messages := []providers.Message{{Role: "system", Content: buildSystemPrompt(cc)}}
	messages = append(messages, a.history(ctx, clientID, text)...)
	messages = append(messages, providers.Message{Role: "user", Content: text})

	ctx = tools.WithToolClientID(ctx, clientID)
	var defs []providers.ToolDefinition
	if repo := a.boundRepository(ctx, clientID, cc); repo != nil {
		ctx = tools.WithToolRepository(ctx, repo)
		defs = a.tools.Definitions()
	}

	req := providers.ChatRequest{
		Tools: defs,
		Model: a.cfg.Model,
		Options: map[string]any{
			providers.OptTemperature: a.cfg.Temperature,
		},
	}
	if a.cfg.MaxTokens > 0 {
		req.Options[providers.OptMaxTokens] = a.cfg.MaxTokens
	}

	for iteration := 1; iteration <= a.cfg.MaxIterations; iteration++ {
		req.Messages = messages
		resp, err := p.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("llm call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			span.SetAttributes(attribute.Int("agent.iterations", iteration))
			slog.Debug("agent.respond", "client", clientID, "iterations", iteration, "duration", time.Since(start))
			return SanitizeAssistantContent(resp.Content), nil
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := a.runTool(ctx, call)
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	return "", fmt.Errorf("%w (%d rounds)", ErrToolLoop, a.cfg.MaxIterations)
}

func (a *Agent) runTool(ctx context.Context, call providers.ToolCall) *tools.Result {
	ctx, span := a.tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		args, _ := json.Marshal(call.Arguments)
		slog.Debug("agent.tool", "tool", call.Name, "args", truncate(string(args), 300))
	}
	result := a.tools.Execute(ctx, call.Name, call.Arguments)
	if result.IsError {
		span.SetStatus(codes.Error, truncate(result.ForLLM, 200))
		slog.Warn("agent.tool failed", "tool", call.Name, "result", truncate(result.ForLLM, 300))
	}
	return result
}

// boundRepository loads the descriptor the tools act on. The context only
// carries the credential-free view.
func (a *Agent) boundRepository(ctx context.Context, clientID string, cc ChatContext) *store.RepositoryRecord {
	if cc.Repository == nil || a.store == nil {
		return nil
	}
	rec, err := a.store.GetRepository(ctx, clientID, cc.Repository.ID)
	if err != nil {
		slog.Warn("agent.repository", "client", clientID, "repository", cc.Repository.ID, "error", err)
		return nil
	}
	return rec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
