package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v66/github"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// dirJob is a directory whose listing is still pending.
type dirJob struct {
	node  *repohost.TreeNode
	path  string
	depth int
}

// ListTree walks the branch with the contents API. Directories are expanded
// depth-first from an explicit worklist; entries keep the host's order.
func (h *Host) ListTree(ctx context.Context, repo *store.RepositoryRecord) ([]*repohost.TreeNode, error) {
	c, err := h.clientFor(repo)
	if err != nil {
		return nil, err
	}
	ref := branchOr("", repo)

	root := &repohost.TreeNode{Children: []*repohost.TreeNode{}}
	stack := []dirJob{{node: root, path: "", depth: 0}}
	count := 0

	for len(stack) > 0 {
		job := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if job.depth > h.opts.MaxTreeDepth {
			return nil, fmt.Errorf("%w: depth above %d at %q", repohost.ErrTreeTooLarge, h.opts.MaxTreeDepth, job.path)
		}

		entries, err := h.listDir(ctx, c, repo, job.path, ref)
		if err != nil {
			return nil, err
		}

		var subdirs []dirJob
		for _, e := range entries {
			count++
			if count > h.opts.MaxTreeNodes {
				return nil, fmt.Errorf("%w: more than %d entries", repohost.ErrTreeTooLarge, h.opts.MaxTreeNodes)
			}
			node := &repohost.TreeNode{
				ID:   e.GetPath(),
				Name: e.GetName(),
				Type: repohost.NodeFile,
				Path: e.GetPath(),
			}
			if e.GetType() == "dir" {
				node.Type = repohost.NodeDirectory
				node.Children = []*repohost.TreeNode{}
				subdirs = append(subdirs, dirJob{node: node, path: node.Path, depth: job.depth + 1})
			}
			job.node.Children = append(job.node.Children, node)
		}
		// Reverse push so the first subdirectory is expanded next.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return root.Children, nil
}

func (h *Host) listDir(ctx context.Context, c *gh.Client, repo *store.RepositoryRecord, path, ref string) ([]*gh.RepositoryContent, error) {
	var entries []*gh.RepositoryContent
	err := h.call(ctx, repo, "list contents", func() (*gh.Response, error) {
		file, dir, resp, err := c.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path,
			&gh.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return resp, err
		}
		if file != nil {
			entries = []*gh.RepositoryContent{file}
			return resp, nil
		}
		entries = dir
		return resp, nil
	})
	return entries, err
}
