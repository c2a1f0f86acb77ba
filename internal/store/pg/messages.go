package pg

import (
	"context"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

func (s *PGStore) AppendMessage(ctx context.Context, msg *store.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, client_id, sender, text, ts) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ClientID, string(msg.Sender), msg.Text, msg.Timestamp,
	)
	return err
}

func (s *PGStore) ListMessages(ctx context.Context, clientID string, limit int) ([]store.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	// Newest N, returned oldest first. LIMIT NULL means no limit.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, ts FROM (
		   SELECT id, sender, text, ts FROM messages
		   WHERE client_id = $1
		   ORDER BY ts DESC, id DESC
		   LIMIT NULLIF($2, -1)
		 ) recent ORDER BY ts, id`,
		clientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ChatMessage
	for rows.Next() {
		m := store.ChatMessage{ClientID: clientID}
		var sender string
		if err := rows.Scan(&m.ID, &sender, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Sender = store.Sender(sender)
		out = append(out, m)
	}
	return out, rows.Err()
}
