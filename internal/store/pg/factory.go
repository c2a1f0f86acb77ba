package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// PGStore implements store.Store backed by Postgres through the pgx
// database/sql driver.
type PGStore struct {
	db *sql.DB
}

// OpenDB opens and pings a Postgres pool.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// NewPGStore wraps an open pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// NewPGStores opens Postgres and returns the store.
func NewPGStores(cfg store.StoreConfig) (*PGStore, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPGStore(db), nil
}

// DB exposes the pool for schema checks.
func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Close() error { return s.db.Close() }

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
