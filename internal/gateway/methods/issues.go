package methods

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

const (
	errTitleRequired    userError = "Title is required"
	errUsernameRequired userError = "Username is required"
)

func (d *Deps) handleGetIssues(ctx context.Context, req *gateway.Request) {
	const name = "github.issues.list"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.IssuesPayload](req)
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	issues, err := d.Host.ListIssues(hctx, rec, repohost.IssueFilter{State: p.State})
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.mirrorIssues(ctx, id, rec.ID, issues)

	d.emit(id, protocol.EventIssuesList, map[string]any{
		"issues":        issues,
		"repository_id": rec.ID,
	})
}

// handleGetAssignedIssues collects the user's issues across every repository
// of the client. Repositories the host fails on are logged and left out.
func (d *Deps) handleGetAssignedIssues(ctx context.Context, req *gateway.Request) {
	const name = "github.issues.assigned"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.AssignedIssuesPayload](req)
	if p.Username == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errUsernameRequired)
		return
	}

	sctx, cancel := d.storeCtx(ctx)
	recs, err := d.Store.ListRepositories(sctx, id)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	results := make([][]repohost.Issue, len(recs))
	var g errgroup.Group
	g.SetLimit(max(d.Config.AssignedFanout, 1))
	for i := range recs {
		rec := &recs[i]
		g.Go(func() error {
			hctx, cancel := d.hostCtx(ctx)
			defer cancel()
			issues, err := d.Host.ListIssues(hctx, rec, repohost.IssueFilter{State: p.State, Assignee: p.Username})
			if err != nil {
				slog.Warn(name+".skip_repository", "client", id, "repository", rec.Name, "error", err)
				return nil
			}
			for j := range issues {
				issues[j].RepositoryID = rec.ID
				issues[j].RepositoryName = rec.Name
			}
			results[i] = issues
			return nil
		})
	}
	g.Wait()

	all := []repohost.Issue{}
	for i, issues := range results {
		d.mirrorIssues(ctx, id, recs[i].ID, issues)
		all = append(all, issues...)
	}
	d.emit(id, protocol.EventIssuesList, map[string]any{
		"issues":   all,
		"assignee": p.Username,
	})
}

func (d *Deps) handleCreateIssue(ctx context.Context, req *gateway.Request) {
	const name = "github.issues.create"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.CreateIssuePayload](req)
	if p.RepositoryID == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	}
	if p.Title == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errTitleRequired)
		return
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	issue, err := d.Host.CreateIssue(hctx, rec, repohost.IssueRequest{
		Title:     p.Title,
		Body:      p.Body,
		Labels:    p.Labels,
		Assignees: p.Assignees,
	})
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.mirrorIssues(ctx, id, rec.ID, []repohost.Issue{*issue})

	d.emit(id, protocol.EventIssueActionSuccess, map[string]any{
		"issue":         issue,
		"repository_id": rec.ID,
		"action":        protocol.ActionCreate,
	})
}

// mirrorIssues upserts issue mirrors. The host stays authoritative, so a
// failed mirror write is logged and does not fail the operation.
func (d *Deps) mirrorIssues(ctx context.Context, clientID, repoID string, issues []repohost.Issue) {
	if len(issues) == 0 {
		return
	}
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	for _, is := range issues {
		if err := d.Store.UpsertIssue(sctx, is.Mirror(clientID, repoID)); err != nil {
			slog.Error("github.issues.mirror", "client", clientID, "number", is.Number, "error", err)
			return
		}
	}
}

func (d *Deps) mirrorPulls(ctx context.Context, clientID, repoID string, pulls []repohost.PullRequest) {
	if len(pulls) == 0 {
		return
	}
	sctx, cancel := d.storeCtx(ctx)
	defer cancel()
	for _, pr := range pulls {
		if err := d.Store.UpsertPullRequest(sctx, pr.Mirror(clientID, repoID)); err != nil {
			slog.Error("github.pulls.mirror", "client", clientID, "number", pr.Number, "error", err)
			return
		}
	}
}
