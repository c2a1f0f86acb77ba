package agent

import (
	"log/slog"
	"regexp"
	"strings"
)

// Models occasionally leak reasoning or wrapper tags into the visible reply.
var (
	thinkingTagPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<think>.*?</think>`),
		regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
		regexp.MustCompile(`(?is)<thought>.*?</thought>`),
	}
	finalTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*final\s*>`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

// SanitizeAssistantContent cleans a model reply before it is stored and sent.
func SanitizeAssistantContent(content string) string {
	if content == "" {
		return content
	}
	original := content

	lower := strings.ToLower(content)
	if strings.Contains(lower, "<think") || strings.Contains(lower, "<thought") {
		for _, pat := range thinkingTagPatterns {
			content = pat.ReplaceAllString(content, "")
		}
	}
	content = finalTagPattern.ReplaceAllString(content, "")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)

	if content != original {
		slog.Debug("sanitized assistant content", "original_len", len(original), "cleaned_len", len(content))
	}
	return content
}
