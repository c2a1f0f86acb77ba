package store

import (
	"context"
	"encoding/json"
	"time"
)

// ConnectionData is the persisted record of one client connection.
type ConnectionData struct {
	ClientID       string          `json:"client_id"`
	Active         bool            `json:"active"`
	Config         json.RawMessage `json:"config,omitempty"`
	ConnectedAt    time.Time       `json:"connected_at"`
	DisconnectedAt *time.Time      `json:"disconnected_at,omitempty"`
}

// ConnectionStore persists connections and their last submitted configuration.
type ConnectionStore interface {
	// UpsertConnection records clientID as active.
	UpsertConnection(ctx context.Context, clientID string) error
	// RemoveConnection marks clientID inactive. Unknown ids are not an error.
	RemoveConnection(ctx context.Context, clientID string) error
	SetConnectionConfig(ctx context.Context, clientID string, cfg json.RawMessage) error
	// GetConnectionConfig returns the last stored config, or nil when none was submitted.
	GetConnectionConfig(ctx context.Context, clientID string) (json.RawMessage, error)
}
