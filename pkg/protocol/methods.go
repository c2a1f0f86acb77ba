package protocol

// Inbound frame types sent by the chat client. Matching is case-insensitive;
// the canonical spelling is upper case.
const (
	// Session
	MethodSubmitConfig = "SUBMIT_CONFIG"
	MethodFetchFiles   = "FETCH_FILES"
	MethodSendChat     = "SEND_CHAT_MESSAGE"

	// Repository descriptors
	MethodAddRepository    = "ADD_REPOSITORY"
	MethodUpdateRepository = "UPDATE_REPOSITORY"
	MethodDeleteRepository = "DELETE_REPOSITORY"
	MethodSelectRepository = "SELECT_REPOSITORY"

	// Issues
	MethodGetIssues         = "GET_ISSUES"
	MethodGetAssignedIssues = "GET_ASSIGNED_ISSUES"
	MethodCreateIssue       = "CREATE_ISSUE"

	// Branches
	MethodGetBranches  = "GET_BRANCHES"
	MethodCreateBranch = "CREATE_BRANCH"

	// Files
	MethodPushFile       = "PUSH_FILE"
	MethodPushFiles      = "PUSH_FILES"
	MethodGetFileContent = "GET_FILE_CONTENT"

	// Pull requests
	MethodCreatePullRequest = "CREATE_PULL_REQUEST"
	MethodGetPullRequests   = "GET_PULL_REQUESTS"

	// Liveness
	MethodPing = "PING"
	MethodPong = "PONG"
)
