package store

import (
	"context"
	"time"
)

// IssueMirror is a denormalized copy of a host issue keyed by
// (client id, repository id, number). The host stays authoritative.
type IssueMirror struct {
	ClientID     string
	RepositoryID string
	Number       int
	HostID       int64
	Title        string
	Body         string
	State        string
	HTMLURL      string
	Labels       []string
	Assignees    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PullRequestMirror is a denormalized copy of a host pull request keyed by
// (client id, repository id, number).
type PullRequestMirror struct {
	ClientID     string
	RepositoryID string
	Number       int
	HostID       int64
	Title        string
	Body         string
	State        string
	HTMLURL      string
	HeadBranch   string
	BaseBranch   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MirrorStore upserts host entity mirrors.
type MirrorStore interface {
	UpsertIssue(ctx context.Context, m *IssueMirror) error
	UpsertPullRequest(ctx context.Context, m *PullRequestMirror) error
}
