package github

import (
	"context"
	"errors"
	"fmt"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// PushFile creates path on branch, or updates it when it already exists.
func (h *Host) PushFile(ctx context.Context, repo *store.RepositoryRecord, file repohost.FileChange, message, branch string) (*repohost.PushFileResult, error) {
	if file.Path == "" {
		return nil, errors.New("file path is required")
	}
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	branch = branchOr(branch, repo)

	var existingSHA string
	err = h.call(ctx, repo, "get file", func() (*gh.Response, error) {
		f, _, resp, err := c.Repositories.GetContents(ctx, repo.Owner, repo.Repo, file.Path,
			&gh.RepositoryContentGetOptions{Ref: branch})
		if err != nil {
			return resp, err
		}
		if f == nil {
			return resp, fmt.Errorf("%w: %s", repohost.ErrIsDirectory, file.Path)
		}
		existingSHA = f.GetSHA()
		return resp, nil
	})
	if err != nil && !errors.Is(err, repohost.ErrNotFound) {
		return nil, err
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: []byte(file.Content),
		Branch:  gh.String(branch),
	}

	var res *gh.RepositoryContentResponse
	if existingSHA == "" {
		err = h.callOnce(ctx, repo, "create file", func() (*gh.Response, error) {
			r, resp, err := c.Repositories.CreateFile(ctx, repo.Owner, repo.Repo, file.Path, opts)
			res = r
			return resp, err
		})
	} else {
		opts.SHA = gh.String(existingSHA)
		err = h.callOnce(ctx, repo, "update file", func() (*gh.Response, error) {
			r, resp, err := c.Repositories.UpdateFile(ctx, repo.Owner, repo.Repo, file.Path, opts)
			res = r
			return resp, err
		})
	}
	if err != nil {
		return nil, err
	}

	return &repohost.PushFileResult{
		Commit: repohost.CommitRef{
			SHA:     res.Commit.GetSHA(),
			Message: res.Commit.GetMessage(),
			HTMLURL: res.Commit.GetHTMLURL(),
		},
		File: repohost.FileRef{
			Path: res.Content.GetPath(),
			SHA:  res.Content.GetSHA(),
			URL:  res.Content.GetHTMLURL(),
		},
	}, nil
}

// PushFiles writes every file in one commit: one tree built on the branch
// head, one commit, then a fast-forward of the branch ref. A failure at any
// step leaves the branch where it was.
func (h *Host) PushFiles(ctx context.Context, repo *store.RepositoryRecord, files []repohost.FileChange, message, branch string) (*repohost.PushFilesResult, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to push")
	}
	for _, f := range files {
		if f.Path == "" {
			return nil, errors.New("every file needs a path")
		}
	}
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	branch = branchOr(branch, repo)
	refName := "heads/" + branch

	var head *gh.Reference
	if err := h.call(ctx, repo, "get ref", func() (*gh.Response, error) {
		r, resp, err := c.Git.GetRef(ctx, repo.Owner, repo.Repo, refName)
		head = r
		return resp, err
	}); err != nil {
		return nil, err
	}
	parentSHA := head.GetObject().GetSHA()

	var parent *gh.Commit
	if err := h.call(ctx, repo, "get commit", func() (*gh.Response, error) {
		cm, resp, err := c.Git.GetCommit(ctx, repo.Owner, repo.Repo, parentSHA)
		parent = cm
		return resp, err
	}); err != nil {
		return nil, err
	}

	entries := make([]*gh.TreeEntry, 0, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		entries = append(entries, &gh.TreeEntry{
			Path:    gh.String(f.Path),
			Mode:    gh.String("100644"),
			Type:    gh.String("blob"),
			Content: gh.String(f.Content),
		})
		paths = append(paths, f.Path)
	}

	var tree *gh.Tree
	if err := h.callOnce(ctx, repo, "create tree", func() (*gh.Response, error) {
		t, resp, err := c.Git.CreateTree(ctx, repo.Owner, repo.Repo, parent.GetTree().GetSHA(), entries)
		tree = t
		return resp, err
	}); err != nil {
		return nil, err
	}

	var commit *gh.Commit
	if err := h.callOnce(ctx, repo, "create commit", func() (*gh.Response, error) {
		cm, resp, err := c.Git.CreateCommit(ctx, repo.Owner, repo.Repo, &gh.Commit{
			Message: gh.String(message),
			Tree:    &gh.Tree{SHA: tree.SHA},
			Parents: []*gh.Commit{{SHA: gh.String(parentSHA)}},
		}, nil)
		commit = cm
		return resp, err
	}); err != nil {
		return nil, err
	}

	// Non-forced: the host rejects the update if the branch moved meanwhile.
	if err := h.call(ctx, repo, "update ref", func() (*gh.Response, error) {
		_, resp, err := c.Git.UpdateRef(ctx, repo.Owner, repo.Repo, &gh.Reference{
			Ref:    gh.String("refs/" + refName),
			Object: &gh.GitObject{SHA: commit.SHA},
		}, false)
		return resp, err
	}); err != nil {
		return nil, err
	}

	return &repohost.PushFilesResult{
		Commit: repohost.CommitRef{
			SHA:     commit.GetSHA(),
			Message: commit.GetMessage(),
			URL:     fmt.Sprintf("https://%s/%s/%s/commit/%s", repo.Host, repo.Owner, repo.Repo, commit.GetSHA()),
		},
		Branch: branch,
		Files:  paths,
	}, nil
}

// GetFileContent fetches one file at ref (the descriptor's branch when empty).
func (h *Host) GetFileContent(ctx context.Context, repo *store.RepositoryRecord, path, ref string) (*repohost.FileContent, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	ref = branchOr(ref, repo)

	var file *gh.RepositoryContent
	err = h.call(ctx, repo, "get file content", func() (*gh.Response, error) {
		f, dir, resp, err := c.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path,
			&gh.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return resp, err
		}
		if f == nil && dir != nil {
			return resp, fmt.Errorf("%w: %q", repohost.ErrIsDirectory, path)
		}
		file = f
		return resp, nil
	})
	if errors.Is(err, repohost.ErrNotFound) {
		return nil, fmt.Errorf("%w: file %s not found in repository", repohost.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &repohost.FileContent{
		Content:     content,
		Path:        file.GetPath(),
		Name:        file.GetName(),
		Size:        file.GetSize(),
		Type:        file.GetType(),
		Encoding:    file.GetEncoding(),
		SHA:         file.GetSHA(),
		DownloadURL: file.GetDownloadURL(),
		HTMLURL:     file.GetHTMLURL(),
	}, nil
}
