package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client owns one WebSocket connection: a read pump that dispatches frames in
// arrival order and a write pump that drains the send queue.
type Client struct {
	id     string
	conn   *websocket.Conn
	router *Router

	maxFrame   int64
	send       chan protocol.Envelope
	pongWait   time.Duration
	pingPeriod time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// NewClient wraps conn. The id is assigned by the registry via Bind.
func NewClient(conn *websocket.Conn, router *Router, maxFrame int64, queue int) *Client {
	if queue <= 0 {
		queue = 256
	}
	return &Client{
		conn:     conn,
		router:   router,
		maxFrame:   maxFrame,
		send:       make(chan protocol.Envelope, queue),
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		done:       make(chan struct{}),
	}
}

// Bind sets the session id. Call before Run.
func (c *Client) Bind(id string) { c.id = id }

// ID returns the session id.
func (c *Client) ID() string { return c.id }

// Send enqueues env without blocking. A full queue or a closed connection drops it.
func (c *Client) Send(env protocol.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	case <-c.done:
		return false
	default:
		slog.Warn("client send queue full", "id", c.id, "type", env.Type)
		return false
	}
}

// Run pumps the connection until it closes. Handlers run on a context that
// outlives the connection so in-flight work completes; its late sends are dropped.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(context.WithoutCancel(ctx))
}

// Close stops accepting frames. The write pump flushes what is already
// queued and then closes the socket.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	if c.maxFrame > 0 {
		c.conn.SetReadLimit(c.maxFrame)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("websocket read", "id", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			slog.Debug("websocket non-text frame ignored", "id", c.id, "kind", msgType)
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			continue
		}
		// Pongs are only processed inside ReadMessage, so a slow handler must
		// not count against the liveness deadline.
		c.conn.SetReadDeadline(time.Time{})
		c.router.Dispatch(ctx, c.id, data)
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flush()
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case env := <-c.send:
			if err := c.write(env, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// flush writes frames queued before Close, bounded by a single write deadline.
func (c *Client) flush() {
	deadline := time.Now().Add(writeWait)
	for {
		select {
		case env := <-c.send:
			if err := c.write(env, deadline); err != nil {
				return
			}
		default:
			c.conn.SetWriteDeadline(deadline)
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(env protocol.Envelope, deadline time.Time) error {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("websocket marshal", "id", c.id, "type", env.Type, "error", err)
		return nil
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("websocket write", "id", c.id, "error", err)
		return err
	}
	return nil
}
