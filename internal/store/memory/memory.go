// Package memory is the in-process persistence backend used in standalone mode
// and tests. Data lives for the lifetime of the process.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

type issueKey struct {
	clientID, repoID string
	number           int
}

// Store implements store.Store in memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	connections map[string]*store.ConnectionData
	messages    map[string][]store.ChatMessage
	repos       map[string][]*store.RepositoryRecord // client id -> creation order
	issues      map[issueKey]store.IssueMirror
	pulls       map[issueKey]store.PullRequestMirror
}

// New returns an empty store.
func New() *Store {
	return &Store{
		connections: make(map[string]*store.ConnectionData),
		messages:    make(map[string][]store.ChatMessage),
		repos:       make(map[string][]*store.RepositoryRecord),
		issues:      make(map[issueKey]store.IssueMirror),
		pulls:       make(map[issueKey]store.PullRequestMirror),
	}
}

func (s *Store) Close() error { return nil }

// --- connections ---

func (s *Store) UpsertConnection(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connections[clientID]; ok {
		c.Active = true
		c.DisconnectedAt = nil
		return nil
	}
	s.connections[clientID] = &store.ConnectionData{
		ClientID:    clientID,
		Active:      true,
		ConnectedAt: time.Now(),
	}
	return nil
}

func (s *Store) RemoveConnection(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connections[clientID]; ok {
		now := time.Now()
		c.Active = false
		c.DisconnectedAt = &now
	}
	return nil
}

func (s *Store) SetConnectionConfig(_ context.Context, clientID string, cfg json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[clientID]
	if !ok {
		c = &store.ConnectionData{ClientID: clientID, Active: true, ConnectedAt: time.Now()}
		s.connections[clientID] = c
	}
	c.Config = append(json.RawMessage(nil), cfg...)
	return nil
}

func (s *Store) GetConnectionConfig(_ context.Context, clientID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[clientID]
	if !ok || c.Config == nil {
		return nil, nil
	}
	return append(json.RawMessage(nil), c.Config...), nil
}

// Connection returns a copy of the persisted connection, for inspection.
func (s *Store) Connection(clientID string) (store.ConnectionData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[clientID]
	if !ok {
		return store.ConnectionData{}, false
	}
	return *c, true
}

// --- messages ---

func (s *Store) AppendMessage(_ context.Context, msg *store.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ClientID] = append(s.messages[msg.ClientID], *msg)
	return nil
}

func (s *Store) ListMessages(_ context.Context, clientID string, limit int) ([]store.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[clientID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]store.ChatMessage, len(all))
	copy(out, all)
	return out, nil
}

// --- repositories ---

func (s *Store) UpsertRepository(_ context.Context, rec *store.RepositoryRecord) (*store.RepositoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.repos[rec.ClientID]
	now := time.Now()

	byID, byName := -1, -1
	for i, r := range list {
		if rec.ID != "" && r.ID == rec.ID {
			byID = i
		}
		if r.Name == rec.Name {
			byName = i
		}
	}

	switch {
	case byID >= 0:
		if byName >= 0 && byName != byID {
			return nil, store.ErrNameTaken
		}
		cur := list[byID]
		updated := *rec
		updated.CreatedAt = cur.CreatedAt
		updated.UpdatedAt = now
		list[byID] = &updated
		out := updated
		return &out, nil
	case byName >= 0:
		cur := list[byName]
		updated := *rec
		updated.ID = cur.ID
		updated.CreatedAt = cur.CreatedAt
		updated.UpdatedAt = now
		list[byName] = &updated
		out := updated
		return &out, nil
	default:
		created := *rec
		if created.ID == "" {
			created.ID = store.GenNewID()
		}
		created.CreatedAt = now
		created.UpdatedAt = now
		s.repos[rec.ClientID] = append(list, &created)
		out := created
		return &out, nil
	}
}

func (s *Store) ListRepositories(_ context.Context, clientID string) ([]store.RepositoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.repos[clientID]
	out := make([]store.RepositoryRecord, 0, len(list))
	for _, r := range list {
		out = append(out, *r)
	}
	return out, nil
}

func (s *Store) GetRepository(_ context.Context, clientID, id string) (*store.RepositoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.repos[clientID] {
		if r.ID == id {
			out := *r
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteRepository(_ context.Context, clientID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.repos[clientID]
	for i, r := range list {
		if r.ID == id {
			s.repos[clientID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// --- mirrors ---

func (s *Store) UpsertIssue(_ context.Context, m *store.IssueMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issueKey{m.ClientID, m.RepositoryID, m.Number}] = *m
	return nil
}

func (s *Store) UpsertPullRequest(_ context.Context, m *store.PullRequestMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls[issueKey{m.ClientID, m.RepositoryID, m.Number}] = *m
	return nil
}

// Issues returns the client's issue mirrors, for inspection.
func (s *Store) Issues(clientID string) []store.IssueMirror {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.IssueMirror
	for k, v := range s.issues {
		if k.clientID == clientID {
			out = append(out, v)
		}
	}
	return out
}

// PullRequests returns the client's pull request mirrors, for inspection.
func (s *Store) PullRequests(clientID string) []store.PullRequestMirror {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.PullRequestMirror
	for k, v := range s.pulls {
		if k.clientID == clientID {
			out = append(out, v)
		}
	}
	return out
}
