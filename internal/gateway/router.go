package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// Op is an inbound operation. The set is closed: every Op must have a handler
// before the server starts (see Router.Validate).
type Op string

const (
	OpSubmitConfig      Op = protocol.MethodSubmitConfig
	OpFetchFiles        Op = protocol.MethodFetchFiles
	OpSendChat          Op = protocol.MethodSendChat
	OpAddRepository     Op = protocol.MethodAddRepository
	OpUpdateRepository  Op = protocol.MethodUpdateRepository
	OpDeleteRepository  Op = protocol.MethodDeleteRepository
	OpSelectRepository  Op = protocol.MethodSelectRepository
	OpGetIssues         Op = protocol.MethodGetIssues
	OpGetAssignedIssues Op = protocol.MethodGetAssignedIssues
	OpCreateIssue       Op = protocol.MethodCreateIssue
	OpGetBranches       Op = protocol.MethodGetBranches
	OpCreateBranch      Op = protocol.MethodCreateBranch
	OpPushFile          Op = protocol.MethodPushFile
	OpPushFiles         Op = protocol.MethodPushFiles
	OpGetFileContent    Op = protocol.MethodGetFileContent
	OpCreatePullRequest Op = protocol.MethodCreatePullRequest
	OpGetPullRequests   Op = protocol.MethodGetPullRequests
	OpPing              Op = protocol.MethodPing
	OpPong              Op = protocol.MethodPong
)

// payloadTypes lists every Op with a constructor for its payload.
// A nil constructor means the op carries no payload.
var payloadTypes = map[Op]func() any{
	OpSubmitConfig:      func() any { return new(SubmitConfigPayload) },
	OpFetchFiles:        func() any { return new(RepositoryRef) },
	OpSendChat:          func() any { return new(ChatPayload) },
	OpAddRepository:     func() any { return new(AddRepositoryPayload) },
	OpUpdateRepository:  func() any { return new(UpdateRepositoryPayload) },
	OpDeleteRepository:  func() any { return new(RepositoryRef) },
	OpSelectRepository:  func() any { return new(RepositoryRef) },
	OpGetIssues:         func() any { return new(IssuesPayload) },
	OpGetAssignedIssues: func() any { return new(AssignedIssuesPayload) },
	OpCreateIssue:       func() any { return new(CreateIssuePayload) },
	OpGetBranches:       func() any { return new(RepositoryRef) },
	OpCreateBranch:      func() any { return new(CreateBranchPayload) },
	OpPushFile:          func() any { return new(PushFilePayload) },
	OpPushFiles:         func() any { return new(PushFilesPayload) },
	OpGetFileContent:    func() any { return new(FileContentPayload) },
	OpCreatePullRequest: func() any { return new(CreatePullRequestPayload) },
	OpGetPullRequests:   func() any { return new(PullRequestsPayload) },
	OpPing:              nil,
	OpPong:              nil,
}

// Ops returns every known Op.
func Ops() []Op {
	out := make([]Op, 0, len(payloadTypes))
	for op := range payloadTypes {
		out = append(out, op)
	}
	return out
}

// ParseOp matches a frame type case-insensitively.
func ParseOp(s string) (Op, bool) {
	op := Op(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := payloadTypes[op]
	return op, ok
}

// Request is one decoded inbound frame.
type Request struct {
	ClientID string
	Op       Op
	// Payload is a pointer to the op's payload struct, or nil for ops without one.
	Payload any
	// Raw is the undecoded payload object.
	Raw json.RawMessage
	// DecodeErr is set when the payload did not match the op's shape. The
	// handler reports it as a validation failure.
	DecodeErr error
}

// PayloadOf returns req's payload as *T, or a zero value when the payload is
// of another type.
func PayloadOf[T any](req *Request) *T {
	if p, ok := req.Payload.(*T); ok && p != nil {
		return p
	}
	return new(T)
}

// HandlerFunc handles one request. Handlers report failures to the client
// themselves and never return errors.
type HandlerFunc func(ctx context.Context, req *Request)

// Router dispatches frames to handlers.
type Router struct {
	sessions *Registry
	handlers map[Op]HandlerFunc
	tracer   trace.Tracer
}

// NewRouter creates a router with the liveness pair already registered.
func NewRouter(sessions *Registry) *Router {
	r := &Router{
		sessions: sessions,
		handlers: make(map[Op]HandlerFunc),
		tracer:   otel.Tracer("github.com/nextlevelbuilder/gitchat/internal/gateway"),
	}
	r.Register(OpPing, r.handlePing)
	r.Register(OpPong, r.handlePong)
	return r
}

// Register sets the handler for op, replacing any previous one.
func (r *Router) Register(op Op, h HandlerFunc) {
	r.handlers[op] = h
}

// Validate reports every Op without a handler.
func (r *Router) Validate() error {
	var missing []string
	for op := range payloadTypes {
		if r.handlers[op] == nil {
			missing = append(missing, string(op))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("no handler for ops: %s", strings.Join(missing, ", "))
}

// Dispatch decodes one raw frame from clientID and runs its handler.
// Frames from unknown sessions, malformed frames and unknown types are logged
// and dropped.
func (r *Router) Dispatch(ctx context.Context, clientID string, data []byte) {
	if !r.sessions.Has(clientID) {
		slog.Warn("gateway.unknown_session", "client", clientID)
		return
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("gateway.malformed_frame", "client", clientID, "error", err)
		return
	}
	if env.Type == "" {
		slog.Warn("gateway.malformed_frame", "client", clientID, "error", "missing type")
		return
	}
	op, ok := ParseOp(env.Type)
	if !ok {
		slog.Warn("gateway.unknown_type", "client", clientID, "type", env.Type)
		return
	}
	h := r.handlers[op]
	if h == nil {
		slog.Warn("gateway.unhandled_op", "client", clientID, "op", op)
		return
	}

	ctx, span := r.tracer.Start(ctx, "gateway.dispatch", trace.WithAttributes(
		attribute.String("client.id", clientID),
		attribute.String("op", string(op)),
	))
	defer span.End()

	req := &Request{ClientID: clientID, Op: op, Raw: env.Payload}
	if newPayload := payloadTypes[op]; newPayload != nil {
		req.Payload = newPayload()
		if p := bytes.TrimSpace(env.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
			if err := json.Unmarshal(p, req.Payload); err != nil {
				req.DecodeErr = fmt.Errorf("invalid %s payload: %w", op, err)
				span.RecordError(req.DecodeErr)
			}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("gateway.handler_panic", "client", clientID, "op", op, "panic", rec, "stack", string(debug.Stack()))
			span.RecordError(errors.New("handler panic"))
		}
	}()
	h(ctx, req)
}

func (r *Router) handlePing(_ context.Context, req *Request) {
	r.sessions.Send(req.ClientID, protocol.NewEvent(protocol.EventPong, struct{}{}))
}

func (r *Router) handlePong(_ context.Context, req *Request) {
	slog.Debug("gateway.pong", "client", req.ClientID)
}
