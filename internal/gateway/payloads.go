package gateway

import (
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// SubmitConfigPayload is the SUBMIT_CONFIG payload. Keys other than these are
// kept in Request.Raw and stored with the connection.
type SubmitConfigPayload struct {
	GeminiToken  string                  `json:"geminiToken"`
	Repositories []store.RepositoryInput `json:"repositories"`
}

// RepositoryRef carries only a repository id. Used by FETCH_FILES,
// DELETE_REPOSITORY, SELECT_REPOSITORY and GET_BRANCHES.
type RepositoryRef struct {
	RepositoryID string `json:"repository_id"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type AddRepositoryPayload struct {
	Repository store.RepositoryInput `json:"repository"`
}

type UpdateRepositoryPayload struct {
	RepositoryID string                `json:"repository_id"`
	Repository   store.RepositoryInput `json:"repository"`
}

type IssuesPayload struct {
	RepositoryID string `json:"repository_id"`
	State        string `json:"state,omitempty"`
}

type AssignedIssuesPayload struct {
	Username string `json:"username"`
	State    string `json:"state,omitempty"`
}

type CreateIssuePayload struct {
	RepositoryID string   `json:"repository_id"`
	Title        string   `json:"title"`
	Body         string   `json:"body,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Assignees    []string `json:"assignees,omitempty"`
}

type CreateBranchPayload struct {
	RepositoryID string `json:"repository_id"`
	BranchName   string `json:"branch_name"`
	BaseBranch   string `json:"base_branch,omitempty"`
}

type PushFilePayload struct {
	RepositoryID  string `json:"repository_id"`
	FilePath      string `json:"file_path"`
	Content       string `json:"content"`
	CommitMessage string `json:"commit_message"`
	Branch        string `json:"branch,omitempty"`
}

type PushFilesPayload struct {
	RepositoryID  string                `json:"repository_id"`
	Files         []repohost.FileChange `json:"files"`
	CommitMessage string                `json:"commit_message"`
	Branch        string                `json:"branch,omitempty"`
}

type CreatePullRequestPayload struct {
	RepositoryID string `json:"repository_id"`
	Title        string `json:"title"`
	Body         string `json:"body,omitempty"`
	HeadBranch   string `json:"head_branch"`
	BaseBranch   string `json:"base_branch,omitempty"`
}

type PullRequestsPayload struct {
	RepositoryID string `json:"repository_id"`
	State        string `json:"state,omitempty"`
}

type FileContentPayload struct {
	RepositoryID string `json:"repository_id"`
	FilePath     string `json:"file_path"`
	Branch       string `json:"branch,omitempty"`
}
