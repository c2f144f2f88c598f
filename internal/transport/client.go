// Package transport implements the per-participant WebSocket connection:
// readPump/writePump goroutines moving JSON text frames between the
// socket and the rest of the system. Uses a single send channel since
// nothing here distinguishes message priority.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brightforge/relay/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConnection is the subset of *websocket.Conn this package depends on,
// narrowed so tests can substitute a fake connection.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Router is the callback a Client hands each decoded frame to. It lives
// in internal/router; Client depends only on this narrow function shape
// to avoid an import cycle.
type Router interface {
	Route(ctx context.Context, c *Client, raw []byte)
	HandleDisconnect(c *Client)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB, generous for joint/signaling frames
	sendBufferSize = 64
)

// Client is one live WebSocket connection, bound to a participant inside
// exactly one room. ParticipantID is empty until the join handshake
// completes; only the reading goroutine ever writes it, so no lock
// guards it.
type Client struct {
	conn        wsConnection
	router      Router
	Service     string
	WorkspaceID string
	RoomID      string

	ParticipantID string
	Role          string

	send      chan []byte
	closeOnce chan struct{}
}

// NewClient constructs a Client bound to a workspace/room pair, known from
// the URL the caller upgraded. The participant identity and role are
// learned from the join handshake and set via SetParticipant.
func NewClient(conn wsConnection, router Router, service, workspaceID, roomID string) *Client {
	return &Client{
		conn:        conn,
		router:      router,
		Service:     service,
		WorkspaceID: workspaceID,
		RoomID:      roomID,
		send:        make(chan []byte, sendBufferSize),
		closeOnce:   make(chan struct{}),
	}
}

// SetParticipant records the identity and role established by the join
// handshake. Called once, from the reading goroutine, before any other
// component observes this client.
func (c *Client) SetParticipant(participantID, role string) {
	c.ParticipantID = participantID
	c.Role = role
}

// Outbox exposes the send channel for tests that exercise routing logic
// without running a real writePump against a socket.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Send enqueues a frame for delivery, non-blocking. Reports whether the
// frame was accepted; a full buffer or a closed client both return false,
// and callers treat both as "drop and let cleanup happen."
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.closeOnce:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendJSON marshals v and enqueues it, for convenience at call sites that
// build typed outbound envelopes.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound frame", zap.Error(err), zap.String("participant_id", c.ParticipantID))
		return false
	}
	return c.Send(data)
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() {
	select {
	case <-c.closeOnce:
	default:
		close(c.closeOnce)
		c.conn.Close()
	}
}

// Run starts the read and write pumps and blocks until the connection
// closes. Callers run it in its own goroutine.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.router.HandleDisconnect(c)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.router.Route(ctx, c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeOnce:
			return
		}
	}
}
