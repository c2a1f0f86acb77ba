package agent

import (
	"encoding/json"
	"strings"
)

const basePrompt = `You are a coding assistant embedded in a repository browser.
You help the user understand and change the repository they have selected:
read files, inspect issues, branches and pull requests, and make changes by
creating branches, committing files and opening pull requests.

Rules:
- Use the tools to look things up instead of guessing file contents.
- Prefer push_files for multi-file changes so they land in one commit.
- Never push to a branch or open a pull request the user did not ask for.
- Keep answers short and use Markdown for code.`

// buildSystemPrompt renders the base prompt plus the chat context.
func buildSystemPrompt(cc ChatContext) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	if cc.Repository != nil {
		r := cc.Repository
		sb.WriteString("\n\n## Selected repository\n")
		sb.WriteString("- name: " + r.Name + "\n")
		sb.WriteString("- host: " + r.Host + "\n")
		sb.WriteString("- owner/repo: " + r.Owner + "/" + r.Repo + "\n")
		sb.WriteString("- default branch: " + r.Branch + "\n")
	} else {
		sb.WriteString("\n\nNo repository is selected. Repository tools are unavailable until the user selects one.")
	}

	if len(cc.Config) > 0 {
		if data, err := json.MarshalIndent(cc.Config, "", "  "); err == nil {
			sb.WriteString("\n\n## Client configuration\n```json\n")
			sb.Write(data)
			sb.WriteString("\n```")
		}
	}
	return sb.String()
}

// credentialKeys are configuration keys that never reach the model.
var credentialKeys = []string{"token", "apikey", "api_key", "secret", "password"}

func isCredentialKey(k string) bool {
	lower := strings.ToLower(k)
	for _, c := range credentialKeys {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// PublicConfig returns a deep copy of a client configuration with every
// credential-looking field removed, including inside repository descriptors.
func PublicConfig(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	cleaned, _ := stripCredentials(m).(map[string]any)
	return cleaned
}

func stripCredentials(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isCredentialKey(k) {
				continue
			}
			out[k] = stripCredentials(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripCredentials(val)
		}
		return out
	default:
		return v
	}
}
