// Package agent answers chat messages with an LLM that can act on the
// client's selected repository through tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/gitchat/internal/providers"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/internal/tools"
)

// ErrNotConfigured is returned by Respond before the client supplied a credential.
var ErrNotConfigured = errors.New("agent is not configured: submit a Gemini API key first")

// ChatContext is what the agent knows about the client beyond the message:
// its configuration without credentials and the selected repository, if any.
type ChatContext struct {
	Config     map[string]any        `json:"config,omitempty"`
	Repository *store.RepositoryView `json:"repository,omitempty"`
}

// Gateway produces chat replies. Implementations are safe for concurrent use
// across clients.
type Gateway interface {
	// Configure (re)binds the client's LLM credential. An empty credential
	// forgets the client.
	Configure(ctx context.Context, clientID, credential string) error
	// Respond returns the reply to text.
	Respond(ctx context.Context, clientID, text string, cc ChatContext) (string, error)
	// Forget drops per-client state.
	Forget(clientID string)
}

// ProviderFactory builds an LLM provider for one credential.
type ProviderFactory func(ctx context.Context, credential string) (providers.Provider, error)

// Store is the persistence the agent reads: chat history and the token-bearing
// repository descriptor its tools act on.
type Store interface {
	ListMessages(ctx context.Context, clientID string, limit int) ([]store.ChatMessage, error)
	GetRepository(ctx context.Context, clientID, id string) (*store.RepositoryRecord, error)
}

// Config tunes an Agent.
type Config struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int // tool-call rounds per reply (default 8)
	HistoryLimit  int // prior messages sent with each request (default 20, negative = none)
}

// Agent is the Gateway implementation. Each client gets its own provider
// instance; tools are shared and bound per call through the context.
type Agent struct {
	cfg     Config
	factory ProviderFactory
	store   Store
	tools   *tools.Registry
	tracer  trace.Tracer

	mu      sync.RWMutex
	clients map[string]providers.Provider
}

var _ Gateway = (*Agent)(nil)

// New creates an Agent. reg may be nil for a tool-less agent.
func New(cfg Config, factory ProviderFactory, st Store, reg *tools.Registry) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 8
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 20
	}
	if reg == nil {
		reg = tools.NewRegistry()
	}
	return &Agent{
		cfg:     cfg,
		factory: factory,
		store:   st,
		tools:   reg,
		tracer:  otel.Tracer("github.com/nextlevelbuilder/gitchat/internal/agent"),
		clients: make(map[string]providers.Provider),
	}
}

func (a *Agent) Configure(ctx context.Context, clientID, credential string) error {
	if credential == "" {
		a.Forget(clientID)
		return nil
	}
	p, err := a.factory(ctx, credential)
	if err != nil {
		return fmt.Errorf("configure agent: %w", err)
	}
	a.mu.Lock()
	a.clients[clientID] = p
	a.mu.Unlock()
	slog.Debug("agent.configured", "client", clientID, "provider", p.Name())
	return nil
}

func (a *Agent) Forget(clientID string) {
	a.mu.Lock()
	delete(a.clients, clientID)
	a.mu.Unlock()
}

func (a *Agent) provider(clientID string) (providers.Provider, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.clients[clientID]
	return p, ok
}

// Configured reports whether clientID has a provider.
func (a *Agent) Configured(clientID string) bool {
	_, ok := a.provider(clientID)
	return ok
}
