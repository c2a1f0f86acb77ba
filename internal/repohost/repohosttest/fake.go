// Package repohosttest provides an in-memory repohost.Host for tests.
package repohosttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// Fake is a scriptable in-memory repository host. Repositories are keyed by
// "owner/repo". Set Deny to reject a key, or Fail to make every call to an
// operation (by method name) return the error.
type Fake struct {
	mu sync.Mutex

	Trees    map[string][]*repohost.TreeNode
	Issues   map[string][]repohost.Issue
	Branches map[string][]repohost.Branch
	Pulls    map[string][]repohost.PullRequest
	Files    map[string]map[string]string // key -> path -> content

	Deny map[string]bool
	Fail map[string]error

	Calls   []string
	commits int
}

var _ repohost.Host = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Trees:    map[string][]*repohost.TreeNode{},
		Issues:   map[string][]repohost.Issue{},
		Branches: map[string][]repohost.Branch{},
		Pulls:    map[string][]repohost.PullRequest{},
		Files:    map[string]map[string]string{},
		Deny:     map[string]bool{},
		Fail:     map[string]error{},
	}
}

func key(repo *store.RepositoryRecord) string { return repo.Owner + "/" + repo.Repo }

// SetFail makes op fail with err (nil clears it).
func (f *Fake) SetFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[op] = err
}

// SetDeny makes every call for owner/repo fail with ErrAccessDenied.
func (f *Fake) SetDeny(k string, deny bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deny[k] = deny
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *Fake) begin(op string, repo *store.RepositoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op)
	if err := f.Fail[op]; err != nil {
		return err
	}
	if f.Deny[key(repo)] {
		return repohost.ErrAccessDenied
	}
	return nil
}

func (f *Fake) ValidateAccess(_ context.Context, repo *store.RepositoryRecord) error {
	return f.begin("ValidateAccess", repo)
}

func (f *Fake) ListTree(_ context.Context, repo *store.RepositoryRecord) ([]*repohost.TreeNode, error) {
	if err := f.begin("ListTree", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := f.Trees[key(repo)]
	if tree == nil {
		tree = []*repohost.TreeNode{}
	}
	return tree, nil
}

func (f *Fake) ListIssues(_ context.Context, repo *store.RepositoryRecord, filter repohost.IssueFilter) ([]repohost.Issue, error) {
	if err := f.begin("ListIssues", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repohost.Issue{}
	for _, is := range f.Issues[key(repo)] {
		if filter.Assignee != "" && !assigned(is, filter.Assignee) {
			continue
		}
		out = append(out, is)
	}
	return out, nil
}

func assigned(is repohost.Issue, login string) bool {
	for _, u := range is.Assignees {
		if u.Login == login {
			return true
		}
	}
	return false
}

func (f *Fake) CreateIssue(_ context.Context, repo *store.RepositoryRecord, req repohost.IssueRequest) (*repohost.Issue, error) {
	if err := f.begin("CreateIssue", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(repo)
	is := repohost.Issue{
		ID:        int64(1000 + len(f.Issues[k])),
		Number:    len(f.Issues[k]) + 1,
		Title:     req.Title,
		Body:      req.Body,
		State:     "open",
		HTMLURL:   fmt.Sprintf("https://%s/%s/issues/%d", repo.Host, k, len(f.Issues[k])+1),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Labels:    []repohost.Label{},
		Assignees: []repohost.User{},
	}
	for _, l := range req.Labels {
		is.Labels = append(is.Labels, repohost.Label{Name: l})
	}
	for _, a := range req.Assignees {
		is.Assignees = append(is.Assignees, repohost.User{Login: a})
	}
	f.Issues[k] = append(f.Issues[k], is)
	return &is, nil
}

func (f *Fake) ListBranches(_ context.Context, repo *store.RepositoryRecord) ([]repohost.Branch, error) {
	if err := f.begin("ListBranches", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]repohost.Branch{}, f.Branches[key(repo)]...)
	return out, nil
}

func (f *Fake) CreateBranch(_ context.Context, repo *store.RepositoryRecord, name, base string) (*repohost.Branch, error) {
	if err := f.begin("CreateBranch", repo); err != nil {
		return nil, err
	}
	if base == "" {
		base = repo.Branch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.Branches[key(repo)] {
		if b.Name == name {
			return nil, fmt.Errorf("reference already exists: %s", name)
		}
	}
	b := repohost.Branch{Name: name, CommitSHA: "sha-" + base, BaseBranch: base}
	f.Branches[key(repo)] = append(f.Branches[key(repo)], repohost.Branch{Name: name, CommitSHA: b.CommitSHA})
	return &b, nil
}

func (f *Fake) PushFile(_ context.Context, repo *store.RepositoryRecord, file repohost.FileChange, message, branch string) (*repohost.PushFileResult, error) {
	if err := f.begin("PushFile", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLocked(repo, file)
	sha := f.nextCommitLocked()
	return &repohost.PushFileResult{
		Commit: repohost.CommitRef{SHA: sha, Message: message},
		File:   repohost.FileRef{Path: file.Path, SHA: "blob-" + file.Path},
	}, nil
}

func (f *Fake) PushFiles(_ context.Context, repo *store.RepositoryRecord, files []repohost.FileChange, message, branch string) (*repohost.PushFilesResult, error) {
	if err := f.begin("PushFiles", repo); err != nil {
		return nil, err
	}
	if branch == "" {
		branch = repo.Branch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(files))
	for _, fc := range files {
		f.writeLocked(repo, fc)
		paths = append(paths, fc.Path)
	}
	sha := f.nextCommitLocked()
	return &repohost.PushFilesResult{
		Commit: repohost.CommitRef{
			SHA:     sha,
			Message: message,
			URL:     fmt.Sprintf("https://%s/%s/commit/%s", repo.Host, key(repo), sha),
		},
		Branch: branch,
		Files:  paths,
	}, nil
}

func (f *Fake) writeLocked(repo *store.RepositoryRecord, fc repohost.FileChange) {
	k := key(repo)
	if f.Files[k] == nil {
		f.Files[k] = map[string]string{}
	}
	f.Files[k][fc.Path] = fc.Content
}

func (f *Fake) nextCommitLocked() string {
	f.commits++
	return fmt.Sprintf("commit-%d", f.commits)
}

func (f *Fake) CreatePullRequest(_ context.Context, repo *store.RepositoryRecord, req repohost.PullRequestRequest) (*repohost.PullRequest, error) {
	if err := f.begin("CreatePullRequest", repo); err != nil {
		return nil, err
	}
	base := req.Base
	if base == "" {
		base = repo.Branch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(repo)
	pr := repohost.PullRequest{
		ID:         int64(2000 + len(f.Pulls[k])),
		Number:     len(f.Pulls[k]) + 1,
		Title:      req.Title,
		Body:       req.Body,
		State:      "open",
		HeadBranch: req.Head,
		BaseBranch: base,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	f.Pulls[k] = append(f.Pulls[k], pr)
	return &pr, nil
}

func (f *Fake) ListPullRequests(_ context.Context, repo *store.RepositoryRecord, state string) ([]repohost.PullRequest, error) {
	if err := f.begin("ListPullRequests", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repohost.PullRequest{}, f.Pulls[key(repo)]...), nil
}

func (f *Fake) GetFileContent(_ context.Context, repo *store.RepositoryRecord, path, ref string) (*repohost.FileContent, error) {
	if err := f.begin("GetFileContent", repo); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	files := f.Files[key(repo)]
	if content, ok := files[path]; ok {
		return &repohost.FileContent{
			Content:  content,
			Path:     path,
			Name:     path[strings.LastIndex(path, "/")+1:],
			Size:     len(content),
			Type:     "file",
			Encoding: "base64",
		}, nil
	}
	prefix := path + "/"
	for p := range files {
		if strings.HasPrefix(p, prefix) {
			return nil, fmt.Errorf("%w: %q", repohost.ErrIsDirectory, path)
		}
	}
	return nil, fmt.Errorf("%w: file %s not found in repository", repohost.ErrNotFound, path)
}

// FilePaths returns the stored paths for owner/repo, sorted.
func (f *Fake) FilePaths(k string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Files[k]))
	for p := range f.Files[k] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
