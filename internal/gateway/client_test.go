package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

func dialTest(t *testing.T, h http.HandlerFunc) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env.Type
}

// --- liveness ---

func TestClient_SlowHandlerKeepsConnection(t *testing.T) {
	const pong = 200 * time.Millisecond

	reg := NewRegistry(memory.New(), 0)
	router := NewRouter(reg)
	router.Register(OpSendChat, func(_ context.Context, req *Request) {
		time.Sleep(4 * pong)
		reg.SendEvent(req.ClientID, protocol.EventNewChatMessage, map[string]string{"text": "done"})
	})

	var up websocket.Upgrader
	conn := dialTest(t, func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(ws, router, 0, 0)
		c.pongWait, c.pingPeriod = pong, pong/4
		c.Bind(reg.Open(c))
		defer func() {
			reg.Close(c.ID())
			c.Close()
		}()
		c.Run(r.Context())
	})

	if err := conn.WriteJSON(protocol.Envelope{Type: protocol.MethodSendChat}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readType(t, conn); got != protocol.EventNewChatMessage {
		t.Fatalf("got %s, want %s", got, protocol.EventNewChatMessage)
	}

	if err := conn.WriteJSON(protocol.Envelope{Type: protocol.MethodPing}); err != nil {
		t.Fatalf("write after slow handler: %v", err)
	}
	if got := readType(t, conn); got != protocol.EventPong {
		t.Fatalf("got %s, want PONG", got)
	}
}

func TestClient_CloseFlushesQueuedFrames(t *testing.T) {
	var up websocket.Upgrader
	conn := dialTest(t, func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(ws, nil, 0, 8)
		c.Bind("c1")
		for i := 0; i < 3; i++ {
			c.Send(protocol.NewEvent(protocol.EventAgentTyping, protocol.TypingPayload{IsTyping: i%2 == 0}))
		}
		c.Close()
		if c.Send(protocol.NewEvent(protocol.EventPong, nil)) {
			t.Error("Send after Close was accepted")
		}
		c.writePump()
	})

	for i := 0; i < 3; i++ {
		if got := readType(t, conn); got != protocol.EventAgentTyping {
			t.Fatalf("frame %d: got %s", i, got)
		}
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after flush: err = %v, want normal closure", err)
	}
}
