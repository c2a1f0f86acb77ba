package providers

// dropUnsignedToolCycles removes assistant tool calls that carry no
// thought_signature, together with their tool results. Gemini 2.5+ rejects a
// replayed tool call without the signature it issued. Assistant text is kept.
func dropUnsignedToolCycles(msgs []Message) []Message {
	drop := make(map[string]bool)
	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		unsigned := false
		for _, tc := range m.ToolCalls {
			if tc.Metadata["thought_signature"] == "" {
				unsigned = true
				break
			}
		}
		if unsigned {
			for _, tc := range m.ToolCalls {
				drop[tc.ID] = true
			}
		}
	}
	if len(drop) == 0 {
		return msgs
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == "tool" && drop[m.ToolCallID]:
			continue
		case m.Role == "assistant" && len(m.ToolCalls) > 0 && drop[m.ToolCalls[0].ID]:
			if m.Content != "" {
				out = append(out, Message{Role: "assistant", Content: m.Content})
			}
		default:
			out = append(out, m)
		}
	}
	return out
}
