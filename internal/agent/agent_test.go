package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/gitchat/internal/providers"
	"github.com/nextlevelbuilder/gitchat/internal/repohost/repohosttest"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
	"github.com/nextlevelbuilder/gitchat/internal/tools"
)

// scriptedProvider replays responses and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.ChatResponse
	requests  []providers.ChatRequest
	err       error
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "test" }

func (p *scriptedProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &providers.ChatResponse{Content: "done"}, nil
	}
	r := p.responses[0]
	p.responses = p.responses[1:]
	return r, nil
}

func newTestAgent(t *testing.T, p *scriptedProvider, cfg Config) (*Agent, *memory.Store, *repohosttest.Fake) {
	t.Helper()
	mem := memory.New()
	host := repohosttest.New()
	reg := tools.NewRegistry()
	tools.RegisterRepositoryTools(reg, host, mem)
	factory := func(context.Context, string) (providers.Provider, error) { return p, nil }
	a := New(cfg, factory, mem, reg)
	if err := a.Configure(context.Background(), "c1", "key"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return a, mem, host
}

func addRepo(t *testing.T, mem *memory.Store) *store.RepositoryRecord {
	t.Helper()
	rec, err := mem.UpsertRepository(context.Background(), &store.RepositoryRecord{
		ClientID: "c1", Name: "demo", Host: "github.com", Owner: "acme", Repo: "demo", Branch: "main", Token: "secret",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return rec
}

// --- configuration ---

func TestRespond_NotConfigured(t *testing.T) {
	a := New(Config{}, nil, nil, nil)
	_, err := a.Respond(context.Background(), "nobody", "hi", ChatContext{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestConfigure_EmptyCredentialForgets(t *testing.T) {
	a, _, _ := newTestAgent(t, &scriptedProvider{}, Config{})
	if !a.Configured("c1") {
		t.Fatal("client not configured")
	}
	if err := a.Configure(context.Background(), "c1", ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if a.Configured("c1") {
		t.Error("empty credential did not forget client")
	}
}

// --- loop ---

func TestRespond_PlainReply(t *testing.T) {
	p := &scriptedProvider{responses: []*providers.ChatResponse{{Content: "<think>hmm</think>Hello!"}}}
	a, _, _ := newTestAgent(t, p, Config{})

	reply, err := a.Respond(context.Background(), "c1", "hi", ChatContext{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "Hello!" {
		t.Errorf("reply = %q", reply)
	}
	if len(p.requests[0].Tools) != 0 {
		t.Error("tools offered without a selected repository")
	}
}

func TestRespond_RunsToolsOnSelectedRepository(t *testing.T) {
	p := &scriptedProvider{responses: []*providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "1", Name: "create_issue", Arguments: map[string]any{"title": "Bug"}}}},
		{Content: "Created issue #1."},
	}}
	a, mem, host := newTestAgent(t, p, Config{})
	rec := addRepo(t, mem)
	view := rec.View()

	reply, err := a.Respond(context.Background(), "c1", "file a bug", ChatContext{Repository: &view})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "Created issue #1." {
		t.Errorf("reply = %q", reply)
	}
	if host.CallCount("CreateIssue") != 1 {
		t.Errorf("CreateIssue calls = %d", host.CallCount("CreateIssue"))
	}
	if len(p.requests) != 2 || len(p.requests[0].Tools) == 0 {
		t.Fatalf("requests = %d", len(p.requests))
	}
	second := p.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "1" || !strings.Contains(last.Content, `"title":"Bug"`) {
		t.Errorf("tool result message = %+v", last)
	}
}

func TestRespond_ToolLoopLimit(t *testing.T) {
	call := &providers.ChatResponse{ToolCalls: []providers.ToolCall{{ID: "x", Name: "list_branches", Arguments: map[string]any{}}}}
	p := &scriptedProvider{responses: []*providers.ChatResponse{call, call, call}}
	a, mem, _ := newTestAgent(t, p, Config{MaxIterations: 2})
	rec := addRepo(t, mem)
	view := rec.View()

	_, err := a.Respond(context.Background(), "c1", "loop", ChatContext{Repository: &view})
	if !errors.Is(err, ErrToolLoop) {
		t.Fatalf("err = %v, want ErrToolLoop", err)
	}
}

func TestRespond_ProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("quota exceeded")}
	a, _, _ := newTestAgent(t, p, Config{})
	_, err := a.Respond(context.Background(), "c1", "hi", ChatContext{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
}

// --- context ---

func TestRespond_IncludesHistory(t *testing.T) {
	p := &scriptedProvider{}
	a, mem, _ := newTestAgent(t, p, Config{HistoryLimit: 2})
	ctx := context.Background()
	for _, m := range []*store.ChatMessage{
		store.NewChatMessage("c1", store.SenderUser, "old question"),
		store.NewChatMessage("c1", store.SenderAgent, "old answer"),
		store.NewChatMessage("c1", store.SenderSystem, "Error processing message: x"),
		store.NewChatMessage("c1", store.SenderUser, "new question"),
	} {
		if err := mem.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if _, err := a.Respond(ctx, "c1", "new question", ChatContext{}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	msgs := p.requests[0].Messages
	// system prompt, "old answer" (system notice skipped, limit 2), new question
	if len(msgs) != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "old answer" {
		t.Errorf("history = %+v", msgs[1])
	}
	if msgs[2].Content != "new question" {
		t.Errorf("current = %+v", msgs[2])
	}
}

func TestPublicConfig_StripsCredentials(t *testing.T) {
	raw := json.RawMessage(`{"geminiToken":"g","theme":"dark","repositories":[{"name":"a","token":"t","url":"u"}]}`)
	cfg := PublicConfig(raw)
	data, _ := json.Marshal(cfg)
	s := string(data)
	if strings.Contains(s, `"g"`) || strings.Contains(s, `"t"`) || strings.Contains(strings.ToLower(s), "token") {
		t.Errorf("credential leaked: %s", s)
	}
	if cfg["theme"] != "dark" {
		t.Errorf("non-credential field dropped: %s", s)
	}
}

func TestBuildSystemPrompt_NoToken(t *testing.T) {
	view := (&store.RepositoryRecord{Name: "demo", Owner: "acme", Repo: "demo", Branch: "main", Token: "secret"}).View()
	prompt := buildSystemPrompt(ChatContext{Repository: &view})
	if strings.Contains(prompt, "secret") {
		t.Error("token in system prompt")
	}
	if !strings.Contains(prompt, "acme/demo") {
		t.Errorf("prompt missing repository: %s", prompt)
	}
}
