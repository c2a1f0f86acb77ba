package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/repohost"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

func chatCmd() *cobra.Command {
	var (
		addr        string
		geminiToken string
		repos       []string
		repoToken   string
		treeDepth   int
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal client for a running gateway",
		Long:  "Connects to a gitchat gateway, submits a configuration and relays stdin lines as chat messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if geminiToken == "" {
				geminiToken = os.Getenv("GEMINI_API_KEY")
			}
			if repoToken == "" {
				repoToken = os.Getenv("GITHUB_TOKEN")
			}
			inputs := make([]store.RepositoryInput, 0, len(repos))
			for _, r := range repos {
				inputs = append(inputs, store.RepositoryInput{Name: r, URL: r, Token: repoToken})
			}
			return runChat(addr, gateway.SubmitConfigPayload{GeminiToken: geminiToken, Repositories: inputs}, treeDepth)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "gateway host:port")
	cmd.Flags().StringVar(&geminiToken, "gemini-token", "", "Gemini API key (default $GEMINI_API_KEY)")
	cmd.Flags().StringSliceVar(&repos, "repo", nil, "repository as owner/name or URL (repeatable)")
	cmd.Flags().StringVar(&repoToken, "token", "", "GitHub token for --repo (default $GITHUB_TOKEN)")
	cmd.Flags().IntVar(&treeDepth, "tree", 1, "file tree levels to print on selection (0 disables)")
	return cmd
}

func runChat(addr string, cfg gateway.SubmitConfigPayload, treeDepth int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)

	if err := sendOp(ctx, conn, protocol.MethodSubmitConfig, cfg); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- readEvents(ctx, conn, treeDepth) }()

	fmt.Fprintf(os.Stderr, "\ngitchat (%s)\n", addr)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if err := sendOp(ctx, conn, protocol.MethodSendChat, gateway.ChatPayload{Text: text}); err != nil {
				return err
			}
		}
	}
}

func sendOp(ctx context.Context, conn *websocket.Conn, op string, payload any) error {
	if err := wsjson.Write(ctx, conn, protocol.NewEvent(op, payload)); err != nil {
		return fmt.Errorf("send %s: %w", op, err)
	}
	return nil
}

// readEvents prints gateway events until the connection closes.
func readEvents(ctx context.Context, conn *websocket.Conn, treeDepth int) error {
	for {
		var env protocol.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		printEvent(env, treeDepth)
	}
}

func printEvent(env protocol.Envelope, treeDepth int) {
	switch env.Type {
	case protocol.EventNewChatMessage:
		var msg store.ChatMessage
		if json.Unmarshal(env.Payload, &msg) != nil || msg.Sender == store.SenderUser {
			return
		}
		fmt.Printf("\n[%s] %s\n\n", msg.Sender, msg.Text)
	case protocol.EventAgentTyping:
		var p protocol.TypingPayload
		if json.Unmarshal(env.Payload, &p) == nil && p.IsTyping {
			fmt.Fprintln(os.Stderr, "  ...")
		}
	case protocol.EventConfigSuccess:
		fmt.Fprintln(os.Stderr, "  [config accepted]")
	case protocol.EventRepositoriesList:
		var p struct {
			Repositories []store.RepositoryView `json:"repositories"`
		}
		if json.Unmarshal(env.Payload, &p) == nil {
			for _, r := range p.Repositories {
				fmt.Fprintf(os.Stderr, "  [repo] %s (%s/%s)\n", r.Name, r.Owner, r.Repo)
			}
		}
	case protocol.EventFileTreeData:
		var p struct {
			Tree       []*repohost.TreeNode  `json:"tree"`
			Repository *store.RepositoryView `json:"repository"`
		}
		if json.Unmarshal(env.Payload, &p) != nil || p.Repository == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "  [selected] %s\n", p.Repository.Name)
		printTree(p.Tree, 0, treeDepth)
	case protocol.EventPong:
	default:
		if strings.HasSuffix(env.Type, "_ERROR") {
			var p protocol.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", env.Type, p.Message)
		}
	}
}

const treeLineWidth = 72

// printTree prints nodes down to maxDepth levels, clipping names by display width.
func printTree(nodes []*repohost.TreeNode, depth, maxDepth int) {
	if depth >= maxDepth {
		return
	}
	indent := strings.Repeat("  ", depth+2)
	for _, n := range nodes {
		name := n.Name
		if n.Type == repohost.NodeDirectory {
			name += "/"
		}
		fmt.Fprintln(os.Stderr, indent+runewidth.Truncate(name, treeLineWidth-len(indent), "..."))
		printTree(n.Children, depth+1, maxDepth)
	}
}
