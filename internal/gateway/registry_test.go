package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

type recorder struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	closed bool
}

func (r *recorder) Send(env protocol.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.frames = append(r.frames, env)
	return true
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Type)
	}
	return out
}

// --- lifecycle ---

func TestRegistry_OpenClose(t *testing.T) {
	st := memory.New()
	reg := NewRegistry(st, 0)

	id := reg.Open(&recorder{})
	if id == "" {
		t.Fatal("empty session id")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
	conn, ok := st.Connection(id)
	if !ok || !conn.Active {
		t.Fatalf("connection not recorded active: %+v", conn)
	}

	var closed []string
	reg.OnClose(func(clientID string) { closed = append(closed, clientID) })

	reg.Close(id)
	reg.Close(id)
	reg.Wait()

	if reg.Len() != 0 {
		t.Errorf("Len = %d after close, want 0", reg.Len())
	}
	if len(closed) != 1 || closed[0] != id {
		t.Errorf("close hooks ran for %v, want exactly [%s]", closed, id)
	}
	conn, _ = st.Connection(id)
	if conn.Active || conn.DisconnectedAt == nil {
		t.Errorf("connection still active after close: %+v", conn)
	}
}

func TestRegistry_IDsAreUnique(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := reg.Open(&recorder{})
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestRegistry_CloseUnknownIsNoop(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	called := false
	reg.OnClose(func(string) { called = true })
	reg.Close("nope")
	reg.Wait()
	if called {
		t.Error("close hook ran for unknown id")
	}
}

// --- send ---

func TestRegistry_SendRoutesToOwnSession(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	a, b := &recorder{}, &recorder{}
	idA := reg.Open(a)
	reg.Open(b)

	reg.SendEvent(idA, protocol.EventPong, nil)

	if got := a.types(); len(got) != 1 || got[0] != protocol.EventPong {
		t.Errorf("session A got %v", got)
	}
	if got := b.types(); len(got) != 0 {
		t.Errorf("session B got %v, want nothing", got)
	}
}

func TestRegistry_SendAfterCloseDropped(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	rec := &recorder{}
	id := reg.Open(rec)
	reg.Close(id)

	reg.SendError(id, protocol.EventConfigError, "late")
	reg.SendEvent("unknown", protocol.EventPong, nil)

	if got := rec.types(); len(got) != 0 {
		t.Errorf("closed session received %v", got)
	}
}

func TestRegistry_SendToClosedHandle(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	rec := &recorder{closed: true}
	id := reg.Open(rec)
	reg.SendEvent(id, protocol.EventPong, nil)
	if got := rec.types(); len(got) != 0 {
		t.Errorf("closed handle received %v", got)
	}
}

// --- ephemeral state ---

func TestRegistry_Selection(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	id := reg.Open(&recorder{})

	if _, ok := reg.Selected(id); ok {
		t.Fatal("new session has a selection")
	}
	reg.SetSelected(id, "r1")
	if got, ok := reg.Selected(id); !ok || got != "r1" {
		t.Errorf("Selected = %q, %v", got, ok)
	}
	reg.ClearSelected(id)
	if _, ok := reg.Selected(id); ok {
		t.Error("selection survived ClearSelected")
	}

	reg.SetSelected("unknown", "r1")
	if _, ok := reg.Selected("unknown"); ok {
		t.Error("unknown session reports a selection")
	}

	reg.SetSelected(id, "r2")
	reg.Close(id)
	if _, ok := reg.Selected(id); ok {
		t.Error("selection survived Close")
	}
}

func TestRegistry_ConfigLastWriteWins(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	id := reg.Open(&recorder{})

	if reg.Config(id) != nil {
		t.Fatal("new session has a configuration")
	}
	reg.SetConfig(id, json.RawMessage(`{"a":1}`))
	reg.SetConfig(id, json.RawMessage(`{"a":2}`))
	if got := string(reg.Config(id)); got != `{"a":2}` {
		t.Errorf("Config = %s", got)
	}
	if reg.Config("unknown") != nil {
		t.Error("unknown session has a configuration")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(memory.New(), 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := reg.Open(&recorder{})
			reg.SetSelected(id, "x")
			reg.SendEvent(id, protocol.EventPong, nil)
			reg.Selected(id)
			reg.Close(id)
		}()
	}
	wg.Wait()
	reg.Wait()
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}
