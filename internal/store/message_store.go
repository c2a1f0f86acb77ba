package store

import (
	"context"
	"time"
)

// Sender is the author role of a conversation message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// ChatMessage is one append-only conversation entry. Timestamp is unix milliseconds.
type ChatMessage struct {
	ID        string `json:"id"`
	ClientID  string `json:"-"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// NewChatMessage stamps a fresh message for clientID.
func NewChatMessage(clientID string, sender Sender, text string) *ChatMessage {
	return &ChatMessage{
		ID:        GenNewID(),
		ClientID:  clientID,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// MessageStore persists conversation history.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	// ListMessages returns at most limit of the client's most recent messages,
	// oldest first. limit <= 0 returns all.
	ListMessages(ctx context.Context, clientID string, limit int) ([]ChatMessage, error)
}
