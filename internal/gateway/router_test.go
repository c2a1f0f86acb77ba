package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

func newTestRouter(t *testing.T) (*Router, *Registry, *recorder, string) {
	t.Helper()
	reg := NewRegistry(memory.New(), 0)
	rec := &recorder{}
	id := reg.Open(rec)
	return NewRouter(reg), reg, rec, id
}

// --- decoding ---

func TestParseOp_CaseInsensitive(t *testing.T) {
	cases := map[string]Op{
		"FETCH_FILES":        OpFetchFiles,
		"fetch_files":        OpFetchFiles,
		" Send_Chat_Message": OpSendChat,
		"ping":               OpPing,
	}
	for in, want := range cases {
		got, ok := ParseOp(in)
		if !ok || got != want {
			t.Errorf("ParseOp(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseOp("DROP_TABLES"); ok {
		t.Error("unknown type parsed")
	}
}

func TestDispatch_TypedPayload(t *testing.T) {
	r, _, _, id := newTestRouter(t)

	var got *Request
	r.Register(OpCreateBranch, func(_ context.Context, req *Request) { got = req })

	r.Dispatch(context.Background(), id, []byte(`{"type":"create_branch","payload":{"repository_id":"r1","branch_name":"feat"}}`))

	if got == nil {
		t.Fatal("handler not called")
	}
	if got.DecodeErr != nil {
		t.Fatalf("DecodeErr = %v", got.DecodeErr)
	}
	p := PayloadOf[CreateBranchPayload](got)
	if p.RepositoryID != "r1" || p.BranchName != "feat" {
		t.Errorf("payload = %+v", p)
	}
	if got.ClientID != id || got.Op != OpCreateBranch {
		t.Errorf("request = %+v", got)
	}
}

func TestDispatch_ShapeMismatchSetsDecodeErr(t *testing.T) {
	r, _, _, id := newTestRouter(t)

	var got *Request
	r.Register(OpSendChat, func(_ context.Context, req *Request) { got = req })

	r.Dispatch(context.Background(), id, []byte(`{"type":"SEND_CHAT_MESSAGE","payload":{"text":42}}`))

	if got == nil {
		t.Fatal("handler not called for a shape mismatch")
	}
	if got.DecodeErr == nil {
		t.Error("DecodeErr not set")
	}
}

func TestDispatch_MissingPayloadIsZeroValue(t *testing.T) {
	r, _, _, id := newTestRouter(t)

	var got *Request
	r.Register(OpFetchFiles, func(_ context.Context, req *Request) { got = req })

	for _, frame := range []string{`{"type":"FETCH_FILES"}`, `{"type":"FETCH_FILES","payload":null}`} {
		got = nil
		r.Dispatch(context.Background(), id, []byte(frame))
		if got == nil || got.DecodeErr != nil {
			t.Fatalf("%s: request = %+v", frame, got)
		}
		if p := PayloadOf[RepositoryRef](got); p.RepositoryID != "" {
			t.Errorf("%s: payload = %+v", frame, p)
		}
	}
}

func TestDispatch_DropsMalformedAndUnknown(t *testing.T) {
	r, _, rec, id := newTestRouter(t)

	calls := 0
	for _, op := range Ops() {
		r.Register(op, func(context.Context, *Request) { calls++ })
	}

	frames := []string{
		`not json`,
		`{"payload":{}}`,
		`{"type":""}`,
		`{"type":"NOT_AN_OP","payload":{}}`,
		`[1,2,3]`,
	}
	for _, f := range frames {
		r.Dispatch(context.Background(), id, []byte(f))
	}
	if calls != 0 {
		t.Errorf("handlers ran %d times for dropped frames", calls)
	}
	if got := rec.types(); len(got) != 0 {
		t.Errorf("dropped frames produced events %v", got)
	}
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	r, _, rec, id := newTestRouter(t)
	r.Register(OpGetBranches, func(context.Context, *Request) { panic("boom") })

	r.Dispatch(context.Background(), id, []byte(`{"type":"GET_BRANCHES","payload":{}}`))
	r.Dispatch(context.Background(), id, []byte(`{"type":"PING"}`))

	if got := rec.types(); len(got) != 1 || got[0] != protocol.EventPong {
		t.Errorf("events after panic = %v, want [PONG]", got)
	}
}

// --- liveness ---

func TestDispatch_PingPong(t *testing.T) {
	r, _, rec, id := newTestRouter(t)

	r.Dispatch(context.Background(), id, []byte(`{"type":"ping","payload":{}}`))
	r.Dispatch(context.Background(), id, []byte(`{"type":"PONG","payload":{}}`))

	got := rec.types()
	if len(got) != 1 || got[0] != protocol.EventPong {
		t.Fatalf("events = %v, want [PONG]", got)
	}
	if p := string(rec.frames[0].Payload); p != "{}" {
		t.Errorf("PONG payload = %q, want {}", p)
	}
}

func TestDispatch_DropsUnknownSession(t *testing.T) {
	r, reg, rec, id := newTestRouter(t)

	calls := 0
	r.Register(OpFetchFiles, func(context.Context, *Request) { calls++ })

	r.Dispatch(context.Background(), "not-a-session", []byte(`{"type":"FETCH_FILES","payload":{}}`))
	reg.Close(id)
	r.Dispatch(context.Background(), id, []byte(`{"type":"FETCH_FILES","payload":{}}`))
	r.Dispatch(context.Background(), id, []byte(`{"type":"PING"}`))

	if calls != 0 {
		t.Errorf("handler ran %d times for frames without a live session", calls)
	}
	if got := rec.types(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

// --- exhaustiveness ---

func TestValidate(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	err := r.Validate()
	if err == nil {
		t.Fatal("Validate passed with only liveness handlers")
	}
	if !strings.Contains(err.Error(), string(OpSubmitConfig)) {
		t.Errorf("error %q does not name SUBMIT_CONFIG", err)
	}

	for _, op := range Ops() {
		if op == OpPing || op == OpPong {
			continue
		}
		r.Register(op, func(context.Context, *Request) {})
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate = %v with every op registered", err)
	}
}

// --- server ---

func TestServer_HealthAndWebSocket(t *testing.T) {
	st := memory.New()
	reg := NewRegistry(st, 0)
	router := NewRouter(reg)
	srv := NewServer(config.GatewayConfig{MaxFrameBytes: 1 << 20}, reg, router)

	ts := httptest.NewServer(srv.BuildMux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("garbage")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(protocol.Envelope{Type: "PING"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != protocol.EventPong {
		t.Errorf("got %s, want PONG", env.Type)
	}

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var health struct {
		Status   string `json:"status"`
		Protocol int    `json:"protocol"`
		Sessions int    `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health.Status != "ok" || health.Protocol != protocol.ProtocolVersion || health.Sessions != 1 {
		t.Errorf("health = %+v", health)
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for reg.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reg.Len() != 0 {
		t.Errorf("session not removed after disconnect")
	}
}

func TestServer_CheckOrigin(t *testing.T) {
	srv := NewServer(config.GatewayConfig{AllowedOrigins: []string{"https://app.example"}}, NewRegistry(memory.New(), 0), nil)

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example", true},
		{"https://evil.example", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := srv.checkOrigin(r); got != tc.want {
			t.Errorf("origin %q: got %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestServer_SetAllowedOrigins(t *testing.T) {
	srv := NewServer(config.GatewayConfig{AllowedOrigins: []string{"https://app.example"}}, NewRegistry(memory.New(), 0), nil)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://new.example")
	if srv.checkOrigin(r) {
		t.Fatal("origin should be rejected before reload")
	}
	srv.SetAllowedOrigins([]string{"https://new.example"})
	if !srv.checkOrigin(r) {
		t.Fatal("origin should be accepted after reload")
	}
	srv.SetAllowedOrigins(nil)
	r.Header.Set("Origin", "https://anything.example")
	if !srv.checkOrigin(r) {
		t.Fatal("empty whitelist should allow any origin")
	}
}
