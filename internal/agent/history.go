package agent

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/gitchat/internal/providers"
	"github.com/nextlevelbuilder/gitchat/internal/store"
)

// history returns the client's recent conversation as provider messages.
// System notices are skipped. The current message is usually persisted
// before Respond runs; a trailing copy of it is dropped.
func (a *Agent) history(ctx context.Context, clientID, current string) []providers.Message {
	if a.store == nil || a.cfg.HistoryLimit < 0 {
		return nil
	}
	msgs, err := a.store.ListMessages(ctx, clientID, a.cfg.HistoryLimit+1)
	if err != nil {
		slog.Warn("agent.history", "client", clientID, "error", err)
		return nil
	}
	if n := len(msgs); n > 0 && msgs[n-1].Sender == store.SenderUser && msgs[n-1].Text == current {
		msgs = msgs[:n-1]
	}
	if len(msgs) > a.cfg.HistoryLimit {
		msgs = msgs[len(msgs)-a.cfg.HistoryLimit:]
	}

	out := make([]providers.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Sender {
		case store.SenderUser:
			out = append(out, providers.Message{Role: "user", Content: m.Text})
		case store.SenderAgent:
			out = append(out, providers.Message{Role: "assistant", Content: m.Text})
		}
	}
	return out
}
