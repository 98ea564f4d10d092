package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizroom/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

func (a *API) serveWS(c *gin.Context) {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}

	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "ws: upgrade failed", "error", err)
		return
	}

	cl := newClient(a, conn)
	go cl.writePump()
	go cl.readPump()
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(a.origins) == 0 || slices.Contains(a.origins, "*") {
		return true
	}

	return slices.Contains(a.origins, origin)
}

// client is one WebSocket connection. It belongs to at most one session room at a time.
type client struct {
	a    *API
	conn *websocket.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	room string
	ps   *redis.PubSub
}

func newClient(a *API, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	telemetry.WebsocketConnections.Inc()

	return &client{
		a:      a,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// JoinRoom moves the connection into the room of a session.
func (c *client) JoinRoom(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room == sessionID {
		return nil
	}

	ps, err := c.a.SubscribeRoom(c.ctx, sessionID)
	if err != nil {
		return err
	}

	if c.ps != nil {
		_ = c.ps.Close()
	}
	c.ps, c.room = ps, sessionID

	go c.forward(ps)
	return nil
}

func (c *client) forward(ps *redis.PubSub) {
	for msg := range ps.Channel() {
		c.enqueue([]byte(msg.Payload))
	}
}

func (c *client) enqueue(b []byte) {
	select {
	case <-c.ctx.Done():
	case c.send <- b:
	default:
		slog.WarnContext(c.ctx, "ws: send buffer full, dropping message", "room", c.currentRoom())
	}
}

func (c *client) reply(n *Notification) {
	if n == nil {
		return
	}

	b, err := json.Marshal(n)
	if err != nil {
		slog.ErrorContext(c.ctx, "ws: marshal reply failed", "type", n.Type, "error", err)
		return
	}

	c.enqueue(b)
}

func (c *client) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.room
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(c.ctx, "ws: read failed", "room", c.currentRoom(), "error", err)
			}
			return
		}

		in, err := DecodeIntent(b)
		if err != nil {
			n := errorReply("", err)
			c.reply(&n)
			continue
		}

		c.reply(c.a.Handle(c.ctx, c, in))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				slog.WarnContext(c.ctx, "ws: write failed", "error", err)
				c.cancel()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *client) close() {
	c.cancel()

	c.mu.Lock()
	if c.ps != nil {
		_ = c.ps.Close()
		c.ps = nil
	}
	c.mu.Unlock()

	_ = c.conn.Close()
	telemetry.WebsocketConnections.Dec()
}
