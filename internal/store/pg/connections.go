package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

func (s *PGStore) UpsertConnection(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (client_id, active, connected_at)
		 VALUES ($1, TRUE, NOW())
		 ON CONFLICT (client_id) DO UPDATE SET active = TRUE, disconnected_at = NULL`,
		clientID,
	)
	return err
}

func (s *PGStore) RemoveConnection(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE connections SET active = FALSE, disconnected_at = NOW() WHERE client_id = $1`,
		clientID,
	)
	return err
}

func (s *PGStore) SetConnectionConfig(ctx context.Context, clientID string, cfg json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (client_id, active, config, connected_at)
		 VALUES ($1, TRUE, $2, NOW())
		 ON CONFLICT (client_id) DO UPDATE SET config = EXCLUDED.config`,
		clientID, []byte(cfg),
	)
	return err
}

func (s *PGStore) GetConnectionConfig(ctx context.Context, clientID string) (json.RawMessage, error) {
	var cfg []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM connections WHERE client_id = $1`, clientID,
	).Scan(&cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
