package pg

import (
	"context"

	"github.com/lib/pq"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

func (s *PGStore) UpsertIssue(ctx context.Context, m *store.IssueMirror) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (client_id, repository_id, number, host_id, title, body, state, html_url,
		 labels, assignees, created_at, updated_at, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 ON CONFLICT (client_id, repository_id, number) DO UPDATE SET
		   host_id = EXCLUDED.host_id, title = EXCLUDED.title, body = EXCLUDED.body,
		   state = EXCLUDED.state, html_url = EXCLUDED.html_url, labels = EXCLUDED.labels,
		   assignees = EXCLUDED.assignees, updated_at = EXCLUDED.updated_at, synced_at = NOW()`,
		m.ClientID, m.RepositoryID, m.Number, m.HostID, m.Title, m.Body, m.State, m.HTMLURL,
		pq.Array(m.Labels), pq.Array(m.Assignees), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (s *PGStore) UpsertPullRequest(ctx context.Context, m *store.PullRequestMirror) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pull_requests (client_id, repository_id, number, host_id, title, body, state, html_url,
		 head_branch, base_branch, created_at, updated_at, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 ON CONFLICT (client_id, repository_id, number) DO UPDATE SET
		   host_id = EXCLUDED.host_id, title = EXCLUDED.title, body = EXCLUDED.body,
		   state = EXCLUDED.state, html_url = EXCLUDED.html_url, head_branch = EXCLUDED.head_branch,
		   base_branch = EXCLUDED.base_branch, updated_at = EXCLUDED.updated_at, synced_at = NOW()`,
		m.ClientID, m.RepositoryID, m.Number, m.HostID, m.Title, m.Body, m.State, m.HTMLURL,
		m.HeadBranch, m.BaseBranch, m.CreatedAt, m.UpdatedAt,
	)
	return err
}
