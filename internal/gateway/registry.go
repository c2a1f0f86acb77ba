package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// Sender is the outbound half of a connection. Send reports false when the
// frame was dropped.
type Sender interface {
	Send(env protocol.Envelope) bool
}

type session struct {
	handle   Sender
	config   json.RawMessage
	selected string
}

// Registry tracks live sessions and their ephemeral state. Lookups of unknown
// ids are no-ops: a session may close while one of its handlers is still running.
type Registry struct {
	conns   store.ConnectionStore
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
	onClose  []func(clientID string)

	bg sync.WaitGroup
}

// NewRegistry creates a registry that records connections in conns.
// timeout bounds each connection write; zero means 10s.
func NewRegistry(conns store.ConnectionStore, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Registry{
		conns:    conns,
		timeout:  timeout,
		sessions: make(map[string]*session),
	}
}

// OnClose registers fn to run after a session is removed.
func (r *Registry) OnClose(fn func(clientID string)) {
	r.mu.Lock()
	r.onClose = append(r.onClose, fn)
	r.mu.Unlock()
}

// Open registers handle under a fresh id and records the connection as active.
func (r *Registry) Open(handle Sender) string {
	id := store.GenNewID()

	r.mu.Lock()
	r.sessions[id] = &session{handle: handle}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.conns.UpsertConnection(ctx, id); err != nil {
		slog.Error("session.open", "client", id, "error", err)
	}
	slog.Info("client connected", "id", id)
	return id
}

// Close removes the session and marks the connection inactive in the
// background. Closing twice is harmless.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	hooks := r.onClose
	r.mu.Unlock()
	if !ok {
		return
	}

	for _, fn := range hooks {
		fn(id)
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.conns.RemoveConnection(ctx, id); err != nil {
			slog.Error("session.close", "client", id, "error", err)
		}
	}()
	slog.Info("client disconnected", "id", id)
}

// Wait blocks until background connection writes started by Close finish.
func (r *Registry) Wait() { r.bg.Wait() }

// Send delivers env to the session, dropping it when the session is gone.
func (r *Registry) Send(id string, env protocol.Envelope) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		slog.Debug("session.send_dropped", "client", id, "type", env.Type)
		return
	}
	if !s.handle.Send(env) {
		slog.Debug("session.send_dropped", "client", id, "type", env.Type)
	}
}

// SendEvent marshals payload into an event and sends it.
func (r *Registry) SendEvent(id, eventType string, payload interface{}) {
	r.Send(id, protocol.NewEvent(eventType, payload))
}

// SendError sends an error event with message.
func (r *Registry) SendError(id, eventType, message string) {
	r.Send(id, protocol.NewErrorEvent(eventType, message))
}

func (r *Registry) SetSelected(id, repoID string) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.selected = repoID
	}
	r.mu.Unlock()
}

func (r *Registry) ClearSelected(id string) {
	r.SetSelected(id, "")
}

// Selected returns the session's selected repository id.
func (r *Registry) Selected(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.selected == "" {
		return "", false
	}
	return s.selected, true
}

// SetConfig replaces the session's configuration.
func (r *Registry) SetConfig(id string, cfg json.RawMessage) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.config = cfg
	}
	r.mu.Unlock()
}

// Config returns the session's last submitted configuration, or nil.
func (r *Registry) Config(id string) json.RawMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return s.config
	}
	return nil
}

// Has reports whether id is a live session.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
