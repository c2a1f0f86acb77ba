package store

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultHost   = "github.com"
	DefaultBranch = "main"
)

// RepositoryRecord is the storage-owned repository descriptor. It carries the
// access token and is never sent to clients; use View for responses.
type RepositoryRecord struct {
	ID        string
	ClientID  string
	Name      string
	URL       string
	Host      string
	Owner     string
	Repo      string
	Branch    string
	Token     string `json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepositoryView is the client-facing projection of a descriptor. It has no
// credential field.
type RepositoryView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Host      string    `json:"host"`
	Owner     string    `json:"owner"`
	Repo      string    `json:"repo"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
}

// View projects the record for outbound events.
func (r *RepositoryRecord) View() RepositoryView {
	return RepositoryView{
		ID:        r.ID,
		Name:      r.Name,
		URL:       r.URL,
		Host:      r.Host,
		Owner:     r.Owner,
		Repo:      r.Repo,
		Branch:    r.Branch,
		CreatedAt: r.CreatedAt,
	}
}

// Views projects a list of records.
func Views(recs []RepositoryRecord) []RepositoryView {
	out := make([]RepositoryView, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].View())
	}
	return out
}

// RepositoryInput is a descriptor as submitted by a client.
type RepositoryInput struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Host   string `json:"host,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Token  string `json:"token,omitempty"`
}

// Record converts the input into a normalized record owned by clientID.
func (in RepositoryInput) Record(clientID string) (*RepositoryRecord, error) {
	rec := &RepositoryRecord{
		ID:       in.ID,
		ClientID: clientID,
		Name:     strings.TrimSpace(in.Name),
		URL:      strings.TrimSpace(in.URL),
		Host:     strings.TrimSpace(in.Host),
		Owner:    strings.TrimSpace(in.Owner),
		Repo:     strings.TrimSpace(in.Repo),
		Branch:   strings.TrimSpace(in.Branch),
		Token:    in.Token,
	}
	if err := rec.Normalize(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Normalize applies defaults and derives owner/repo from the URL when absent.
func (r *RepositoryRecord) Normalize() error {
	if r.ClientID == "" {
		return errors.New("repository: client id is required")
	}
	if r.Name == "" {
		return errors.New("repository: name is required")
	}
	if r.Owner == "" || r.Repo == "" || r.Host == "" {
		host, owner, repo := parseRepoURL(r.URL)
		if r.Host == "" {
			r.Host = host
		}
		if r.Owner == "" {
			r.Owner = owner
		}
		if r.Repo == "" {
			r.Repo = repo
		}
	}
	if r.Host == "" {
		r.Host = DefaultHost
	}
	if r.Branch == "" {
		r.Branch = DefaultBranch
	}
	if r.Owner == "" || r.Repo == "" {
		return errors.New("repository: owner and repo are required (or a url of the form https://host/owner/repo)")
	}
	return nil
}

// parseRepoURL splits https://host/owner/repo(.git) into its parts.
func parseRepoURL(raw string) (host, owner, repo string) {
	if raw == "" {
		return "", "", ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return u.Hostname(), "", ""
	}
	return u.Hostname(), parts[0], strings.TrimSuffix(parts[1], ".git")
}

// RepositoryStore persists repository descriptors. (client id, name) is unique.
type RepositoryStore interface {
	// UpsertRepository stores rec. When rec.ID names an existing descriptor of
	// the client it is updated in place; otherwise the (client id, name) key
	// decides between insert and overwrite. Returns the stored record.
	UpsertRepository(ctx context.Context, rec *RepositoryRecord) (*RepositoryRecord, error)
	// ListRepositories returns the client's descriptors in creation order.
	ListRepositories(ctx context.Context, clientID string) ([]RepositoryRecord, error)
	GetRepository(ctx context.Context, clientID, id string) (*RepositoryRecord, error)
	DeleteRepository(ctx context.Context, clientID, id string) error
}
