package methods

import (
	"context"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

const (
	errFilePathRequired      userError = "File path is required"
	errFilesRequired         userError = "At least one file is required"
	errCommitMessageRequired userError = "Commit message is required"
)

func (d *Deps) handlePushFile(ctx context.Context, req *gateway.Request) {
	const name = "github.files.push"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.PushFilePayload](req)
	switch {
	case p.RepositoryID == "":
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	case p.FilePath == "":
		d.reject(id, name, protocol.EventGitHubActionError, errFilePathRequired)
		return
	case p.CommitMessage == "":
		d.reject(id, name, protocol.EventGitHubActionError, errCommitMessageRequired)
		return
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	result, err := d.Host.PushFile(hctx, rec, repohost.FileChange{Path: p.FilePath, Content: p.Content}, p.CommitMessage, p.Branch)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.emit(id, protocol.EventFileActionSuccess, map[string]any{
		"result":        result,
		"repository_id": rec.ID,
		"action":        protocol.ActionPush,
	})
}

// handlePushFiles commits every file in one commit. On failure the branch is
// unchanged and a single error is reported.
func (d *Deps) handlePushFiles(ctx context.Context, req *gateway.Request) {
	const name = "github.files.push_multiple"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.PushFilesPayload](req)
	switch {
	case p.RepositoryID == "":
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	case len(p.Files) == 0:
		d.reject(id, name, protocol.EventGitHubActionError, errFilesRequired)
		return
	case p.CommitMessage == "":
		d.reject(id, name, protocol.EventGitHubActionError, errCommitMessageRequired)
		return
	}
	for _, f := range p.Files {
		if f.Path == "" {
			d.reject(id, name, protocol.EventGitHubActionError, errFilePathRequired)
			return
		}
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	result, err := d.Host.PushFiles(hctx, rec, p.Files, p.CommitMessage, p.Branch)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.emit(id, protocol.EventFileActionSuccess, map[string]any{
		"result":        result,
		"repository_id": rec.ID,
		"action":        protocol.ActionPushMultiple,
	})
}

func (d *Deps) handleGetFileContent(ctx context.Context, req *gateway.Request) {
	const name = "github.files.get"
	id := req.ClientID
	if req.DecodeErr != nil {
		d.reject(id, name, protocol.EventGitHubActionError, req.DecodeErr)
		return
	}
	p := gateway.PayloadOf[gateway.FileContentPayload](req)
	if p.RepositoryID == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errRepositoryIDRequired)
		return
	}
	if p.FilePath == "" {
		d.reject(id, name, protocol.EventGitHubActionError, errFilePathRequired)
		return
	}
	rec, err := d.repository(ctx, id, p.RepositoryID)
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}

	hctx, cancel := d.hostCtx(ctx)
	file, err := d.Host.GetFileContent(hctx, rec, p.FilePath, p.Branch)
	cancel()
	if err != nil {
		d.fail(id, name, protocol.EventGitHubActionError, err)
		return
	}
	d.emit(id, protocol.EventFileContent, map[string]any{
		"file":          file,
		"repository_id": rec.ID,
	})
}
