package protocol

// Outbound frame types pushed from server to client.
const (
	EventConfigSuccess = "CONFIG_SUCCESS"
	EventConfigError   = "CONFIG_ERROR"

	EventFileTreeData  = "FILE_TREE_DATA"
	EventFileTreeError = "FILE_TREE_ERROR"

	EventNewChatMessage = "NEW_CHAT_MESSAGE"
	EventAgentTyping    = "AGENT_TYPING"

	EventRepositoryActionSuccess = "REPOSITORY_ACTION_SUCCESS"
	EventRepositoryActionError   = "REPOSITORY_ACTION_ERROR"
	EventRepositoriesList        = "REPOSITORIES_LIST"

	EventIssuesList               = "GITHUB_ISSUES_LIST"
	EventIssueActionSuccess       = "GITHUB_ISSUE_ACTION_SUCCESS"
	EventBranchesList             = "GITHUB_BRANCHES_LIST"
	EventBranchActionSuccess      = "GITHUB_BRANCH_ACTION_SUCCESS"
	EventFileActionSuccess        = "GITHUB_FILE_ACTION_SUCCESS"
	EventFileContent              = "GITHUB_FILE_CONTENT"
	EventPullRequestActionSuccess = "GITHUB_PULL_REQUEST_ACTION_SUCCESS"
	EventPullRequestsList         = "GITHUB_PULL_REQUESTS_LIST"
	EventGitHubActionError        = "GITHUB_ACTION_ERROR"

	EventPong = "PONG"
)

// Repository action names carried in action-success payloads.
const (
	ActionAdd          = "add"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionSelect       = "select"
	ActionCreate       = "create"
	ActionPush         = "push"
	ActionPushMultiple = "push_multiple"
)
