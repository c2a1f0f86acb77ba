// Package repohost defines the repository-host integration used by request
// handlers and agent tools. The github subpackage implements it.
package repohost

import (
	"context"
	"errors"
	"time"

	"github.com/nextlevelbuilder/gitchat/internal/store"
)

var (
	// ErrNotFound is returned when the host reports a missing repository, ref or path.
	ErrNotFound = errors.New("not found on repository host")
	// ErrAccessDenied is returned when the credential cannot access the repository.
	ErrAccessDenied = errors.New("invalid repository or unable to access with provided token")
	// ErrTreeTooLarge is returned when a file tree exceeds the traversal ceiling.
	// It is retryable: the host may have been paging slowly or the ceiling can be raised.
	ErrTreeTooLarge = errors.New("file tree exceeds traversal limit")
	// ErrIsDirectory is returned when file content is requested for a directory.
	ErrIsDirectory = errors.New("path is a directory, not a file")
)

// Host performs authenticated operations against a remote repository host.
// Every method takes the full stored descriptor, including its credential.
type Host interface {
	// ValidateAccess returns nil when the descriptor's credential can read the repository.
	ValidateAccess(ctx context.Context, repo *store.RepositoryRecord) error
	// ListTree lists the descriptor's branch as a tree, top-level entries first.
	ListTree(ctx context.Context, repo *store.RepositoryRecord) ([]*TreeNode, error)

	ListIssues(ctx context.Context, repo *store.RepositoryRecord, filter IssueFilter) ([]Issue, error)
	CreateIssue(ctx context.Context, repo *store.RepositoryRecord, req IssueRequest) (*Issue, error)

	ListBranches(ctx context.Context, repo *store.RepositoryRecord) ([]Branch, error)
	// CreateBranch creates name from base (the descriptor's branch when empty).
	CreateBranch(ctx context.Context, repo *store.RepositoryRecord, name, base string) (*Branch, error)

	// PushFile creates or updates one file with its own commit.
	PushFile(ctx context.Context, repo *store.RepositoryRecord, file FileChange, message, branch string) (*PushFileResult, error)
	// PushFiles commits all files as a single commit. Either the branch moves to a
	// commit containing every file, or it is left untouched.
	PushFiles(ctx context.Context, repo *store.RepositoryRecord, files []FileChange, message, branch string) (*PushFilesResult, error)

	CreatePullRequest(ctx context.Context, repo *store.RepositoryRecord, req PullRequestRequest) (*PullRequest, error)
	ListPullRequests(ctx context.Context, repo *store.RepositoryRecord, state string) ([]PullRequest, error)

	GetFileContent(ctx context.Context, repo *store.RepositoryRecord, path, ref string) (*FileContent, error)
}

// Tree node kinds.
const (
	NodeFile      = "file"
	NodeDirectory = "directory"
)

// TreeNode is one entry of a file tree. Children is nil for files and
// non-nil for directories, in host order.
type TreeNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Path     string      `json:"path"`
	Children []*TreeNode `json:"children"`
}

type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type User struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type Issue struct {
	ID             int64     `json:"id"`
	Number         int       `json:"number"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	State          string    `json:"state"`
	HTMLURL        string    `json:"html_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Labels         []Label   `json:"labels"`
	Assignees      []User    `json:"assignees"`
	RepositoryID   string    `json:"repository_id,omitempty"`
	RepositoryName string    `json:"repository_name,omitempty"`
}

// IssueFilter narrows ListIssues. Empty State means "open".
type IssueFilter struct {
	State    string
	Assignee string
}

type IssueRequest struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

type Branch struct {
	Name       string `json:"name"`
	CommitSHA  string `json:"commit_sha"`
	Protected  bool   `json:"protected"`
	BaseBranch string `json:"base_branch,omitempty"`
}

// FileChange is one file to write.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type CommitRef struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	HTMLURL string `json:"html_url,omitempty"`
	URL     string `json:"url,omitempty"`
}

type FileRef struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	URL  string `json:"url"`
}

type PushFileResult struct {
	Commit CommitRef `json:"commit"`
	File   FileRef   `json:"file"`
}

type PushFilesResult struct {
	Commit CommitRef `json:"commit"`
	Branch string    `json:"branch"`
	Files  []string  `json:"files"`
}

type PullRequest struct {
	ID           int64     `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HeadBranch   string    `json:"head_branch"`
	BaseBranch   string    `json:"base_branch"`
	RepositoryID string    `json:"repository_id,omitempty"`
}

// PullRequestRequest opens Head into Base (the descriptor's branch when empty).
type PullRequestRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

type FileContent struct {
	Content     string `json:"content"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int    `json:"size"`
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
	HTMLURL     string `json:"html_url"`
}

// Mirror converts the issue for persistence under the given client and repository.
func (i Issue) Mirror(clientID, repositoryID string) *store.IssueMirror {
	m := &store.IssueMirror{
		ClientID:     clientID,
		RepositoryID: repositoryID,
		Number:       i.Number,
		HostID:       i.ID,
		Title:        i.Title,
		Body:         i.Body,
		State:        i.State,
		HTMLURL:      i.HTMLURL,
		Labels:       make([]string, 0, len(i.Labels)),
		Assignees:    make([]string, 0, len(i.Assignees)),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
	for _, l := range i.Labels {
		m.Labels = append(m.Labels, l.Name)
	}
	for _, u := range i.Assignees {
		m.Assignees = append(m.Assignees, u.Login)
	}
	return m
}

// Mirror converts the pull request for persistence under the given client and repository.
func (p PullRequest) Mirror(clientID, repositoryID string) *store.PullRequestMirror {
	return &store.PullRequestMirror{
		ClientID:     clientID,
		RepositoryID: repositoryID,
		Number:       p.Number,
		HostID:       p.ID,
		Title:        p.Title,
		Body:         p.Body,
		State:        p.State,
		HTMLURL:      p.HTMLURL,
		HeadBranch:   p.HeadBranch,
		BaseBranch:   p.BaseBranch,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
