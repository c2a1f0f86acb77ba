package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

var errNoRepository = errors.New("no repository is selected; ask the user to select one first")

// repoTool is a tool bound to the repository selected for the current turn.
type repoTool struct {
	name   string
	desc   string
	params map[string]any
	run    func(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error)
}

func (t *repoTool) Name() string               { return t.name }
func (t *repoTool) Description() string        { return t.desc }
func (t *repoTool) Parameters() map[string]any { return t.params }

func (t *repoTool) Execute(ctx context.Context, args map[string]any) *Result {
	repo := ToolRepositoryFromCtx(ctx)
	if repo == nil {
		return ErrorResult(errNoRepository.Error())
	}
	out, err := t.run(ctx, repo, args)
	if err != nil {
		slog.Warn("tools.repository failed", "tool", t.name, "client", ToolClientIDFromCtx(ctx), "repository", repo.ID, "error", err)
		return ErrorResult(fmt.Sprintf("%s failed: %v", t.name, err)).WithError(err)
	}
	return JSONResult(out)
}

// RegisterRepositoryTools adds the repository-host tools to reg. Issues and
// pull requests created or listed by tools are mirrored into mirrors.
func RegisterRepositoryTools(reg *Registry, host repohost.Host, mirrors store.MirrorStore) {
	rt := &repositoryTools{host: host, mirrors: mirrors}
	for _, t := range rt.all() {
		reg.Register(t)
	}
}

type repositoryTools struct {
	host    repohost.Host
	mirrors store.MirrorStore
}

func (rt *repositoryTools) all() []Tool {
	return []Tool{
		&repoTool{
			name: "get_issues",
			desc: "List issues of the selected repository.",
			params: object(map[string]any{
				"state":    enumProp("Issue state filter. Default: open.", "open", "closed", "all"),
				"assignee": stringProp("Only issues assigned to this login."),
			}),
			run: rt.getIssues,
		},
		&repoTool{
			name: "create_issue",
			desc: "Create an issue in the selected repository.",
			params: object(map[string]any{
				"title":     stringProp("Issue title."),
				"body":      stringProp("Issue body in Markdown."),
				"labels":    stringListProp("Label names."),
				"assignees": stringListProp("Logins to assign."),
			}, "title"),
			run: rt.createIssue,
		},
		&repoTool{
			name:   "list_branches",
			desc:   "List branches of the selected repository.",
			params: object(map[string]any{}),
			run: func(ctx context.Context, repo *store.RepositoryRecord, _ map[string]any) (any, error) {
				return rt.host.ListBranches(ctx, repo)
			},
		},
		&repoTool{
			name: "create_branch",
			desc: "Create a branch from base (the repository's configured branch when omitted).",
			params: object(map[string]any{
				"name": stringProp("New branch name."),
				"base": stringProp("Branch to start from."),
			}, "name"),
			run: func(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
				return rt.host.CreateBranch(ctx, repo, argString(args, "name"), argString(args, "base"))
			},
		},
		&repoTool{
			name: "get_file_content",
			desc: "Read one file from the selected repository.",
			params: object(map[string]any{
				"path": stringProp("File path relative to the repository root."),
				"ref":  stringProp("Branch, tag or commit. Default: the configured branch."),
			}, "path"),
			run: func(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
				return rt.host.GetFileContent(ctx, repo, argString(args, "path"), argString(args, "ref"))
			},
		},
		&repoTool{
			name: "push_file",
			desc: "Create or update one file with its own commit.",
			params: object(map[string]any{
				"path":    stringProp("File path."),
				"content": stringProp("Full new file content."),
				"message": stringProp("Commit message."),
				"branch":  stringProp("Target branch. Default: the configured branch."),
			}, "path", "content", "message"),
			run: func(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
				fc := repohost.FileChange{Path: argString(args, "path"), Content: argString(args, "content")}
				return rt.host.PushFile(ctx, repo, fc, argString(args, "message"), argString(args, "branch"))
			},
		},
		&repoTool{
			name: "push_files",
			desc: "Write several files as a single commit. Either every file lands or none does.",
			params: object(map[string]any{
				"files": map[string]any{
					"type":        "array",
					"description": "Files to write.",
					"items": object(map[string]any{
						"path":    stringProp("File path."),
						"content": stringProp("Full file content."),
					}, "path", "content"),
				},
				"message": stringProp("Commit message."),
				"branch":  stringProp("Target branch. Default: the configured branch."),
			}, "files", "message"),
			run: func(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
				return rt.host.PushFiles(ctx, repo, argFiles(args, "files"), argString(args, "message"), argString(args, "branch"))
			},
		},
		&repoTool{
			name: "create_pull_request",
			desc: "Open a pull request from head into base.",
			params: object(map[string]any{
				"title": stringProp("Pull request title."),
				"body":  stringProp("Description in Markdown."),
				"head":  stringProp("Branch with the changes."),
				"base":  stringProp("Branch to merge into. Default: the configured branch."),
			}, "title", "head"),
			run: rt.createPullRequest,
		},
		&repoTool{
			name: "get_pull_requests",
			desc: "List pull requests of the selected repository.",
			params: object(map[string]any{
				"state": enumProp("Pull request state filter. Default: open.", "open", "closed", "all"),
			}),
			run: rt.getPullRequests,
		},
	}
}

func (rt *repositoryTools) getIssues(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
	issues, err := rt.host.ListIssues(ctx, repo, repohost.IssueFilter{
		State:    argString(args, "state"),
		Assignee: argString(args, "assignee"),
	})
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		rt.mirrorIssue(ctx, repo, is)
	}
	return issues, nil
}

func (rt *repositoryTools) createIssue(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
	is, err := rt.host.CreateIssue(ctx, repo, repohost.IssueRequest{
		Title:     argString(args, "title"),
		Body:      argString(args, "body"),
		Labels:    argStrings(args, "labels"),
		Assignees: argStrings(args, "assignees"),
	})
	if err != nil {
		return nil, err
	}
	rt.mirrorIssue(ctx, repo, *is)
	return is, nil
}

func (rt *repositoryTools) createPullRequest(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
	pr, err := rt.host.CreatePullRequest(ctx, repo, repohost.PullRequestRequest{
		Title: argString(args, "title"),
		Body:  argString(args, "body"),
		Head:  argString(args, "head"),
		Base:  argString(args, "base"),
	})
	if err != nil {
		return nil, err
	}
	rt.mirrorPull(ctx, repo, *pr)
	return pr, nil
}

func (rt *repositoryTools) getPullRequests(ctx context.Context, repo *store.RepositoryRecord, args map[string]any) (any, error) {
	prs, err := rt.host.ListPullRequests(ctx, repo, argString(args, "state"))
	if err != nil {
		return nil, err
	}
	for _, pr := range prs {
		rt.mirrorPull(ctx, repo, pr)
	}
	return prs, nil
}

func (rt *repositoryTools) mirrorIssue(ctx context.Context, repo *store.RepositoryRecord, is repohost.Issue) {
	if rt.mirrors == nil {
		return
	}
	if err := rt.mirrors.UpsertIssue(ctx, is.Mirror(repo.ClientID, repo.ID)); err != nil {
		slog.Warn("tools.mirror issue", "repository", repo.ID, "number", is.Number, "error", err)
	}
}

func (rt *repositoryTools) mirrorPull(ctx context.Context, repo *store.RepositoryRecord, pr repohost.PullRequest) {
	if rt.mirrors == nil {
		return
	}
	if err := rt.mirrors.UpsertPullRequest(ctx, pr.Mirror(repo.ClientID, repo.ID)); err != nil {
		slog.Warn("tools.mirror pull request", "repository", repo.ID, "number", pr.Number, "error", err)
	}
}

// --- schema and argument helpers ---

func object(props map[string]any, required ...string) map[string]any {
	m := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		m["required"] = required
	}
	return m
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func stringListProp(desc string) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": map[string]any{"type": "string"}}
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argStrings(args map[string]any, key string) []string {
	raw, _ := args[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func argFiles(args map[string]any, key string) []repohost.FileChange {
	raw, _ := args[key].([]any)
	out := make([]repohost.FileChange, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, repohost.FileChange{Path: argString(m, "path"), Content: argString(m, "content")})
	}
	return out
}
