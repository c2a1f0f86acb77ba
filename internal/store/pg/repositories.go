package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

const repoColumns = `id, client_id, name, url, host, owner, repo, branch, token, created_at, updated_at`

func (s *PGStore) UpsertRepository(ctx context.Context, rec *store.RepositoryRecord) (*store.RepositoryRecord, error) {
	if rec.ID != "" {
		out, err := s.scanRepo(s.db.QueryRowContext(ctx,
			`UPDATE repositories
			 SET name = $3, url = $4, host = $5, owner = $6, repo = $7, branch = $8, token = $9, updated_at = NOW()
			 WHERE client_id = $1 AND id = $2
			 RETURNING `+repoColumns,
			rec.ClientID, rec.ID, rec.Name, rec.URL, rec.Host, rec.Owner, rec.Repo, rec.Branch, nilStr(rec.Token),
		))
		switch {
		case err == nil:
			return out, nil
		case isUniqueViolation(err):
			return nil, store.ErrNameTaken
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
	}

	id := rec.ID
	if id == "" {
		id = store.GenNewID()
	}
	return s.scanRepo(s.db.QueryRowContext(ctx,
		`INSERT INTO repositories (id, client_id, name, url, host, owner, repo, branch, token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 ON CONFLICT (client_id, name) DO UPDATE SET
		   url = EXCLUDED.url, host = EXCLUDED.host, owner = EXCLUDED.owner, repo = EXCLUDED.repo,
		   branch = EXCLUDED.branch, token = EXCLUDED.token, updated_at = NOW()
		 RETURNING `+repoColumns,
		id, rec.ClientID, rec.Name, rec.URL, rec.Host, rec.Owner, rec.Repo, rec.Branch, nilStr(rec.Token),
	))
}

func (s *PGStore) ListRepositories(ctx context.Context, clientID string) ([]store.RepositoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+repoColumns+` FROM repositories WHERE client_id = $1 ORDER BY created_at, id`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RepositoryRecord
	for rows.Next() {
		var r store.RepositoryRecord
		var token *string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Name, &r.URL, &r.Host, &r.Owner, &r.Repo, &r.Branch,
			&token, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Token = derefStr(token)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) GetRepository(ctx context.Context, clientID, id string) (*store.RepositoryRecord, error) {
	rec, err := s.scanRepo(s.db.QueryRowContext(ctx,
		`SELECT `+repoColumns+` FROM repositories WHERE client_id = $1 AND id = $2`,
		clientID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func (s *PGStore) DeleteRepository(ctx context.Context, clientID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM repositories WHERE client_id = $1 AND id = $2`, clientID, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGStore) scanRepo(row *sql.Row) (*store.RepositoryRecord, error) {
	var r store.RepositoryRecord
	var token *string
	err := row.Scan(&r.ID, &r.ClientID, &r.Name, &r.URL, &r.Host, &r.Owner, &r.Repo, &r.Branch,
		&token, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Token = derefStr(token)
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
