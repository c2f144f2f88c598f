package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	toRead   [][]byte
	readIdx  int
	closed   bool
	readErr  error
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readIdx >= len(f.toRead) {
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, errClosedForTest
	}
	msg := f.toRead[f.readIdx]
	f.readIdx++
	return 1, msg, nil // websocket.TextMessage == 1
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(h func(string) error) {}

type errString string

func (e errString) Error() string { return string(e) }

const errClosedForTest = errString("fake connection closed")

type recordingRouter struct {
	mu   sync.Mutex
	seen [][]byte
}

func (r *recordingRouter) Route(ctx context.Context, c *Client, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, raw)
}

func (r *recordingRouter) HandleDisconnect(c *Client) {}

func TestClient_SendEnqueuesFrame(t *testing.T) {
	conn := &fakeConn{}
	router := &recordingRouter{}
	c := NewClient(conn, router, "robotics", "ws1", "room1")

	ok := c.Send([]byte(`{"type":"heartbeat"}`))
	assert.True(t, ok)
}

func TestClient_SendFailsWhenBufferFull(t *testing.T) {
	conn := &fakeConn{}
	router := &recordingRouter{}
	c := NewClient(conn, router, "robotics", "ws1", "room1")

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.Send([]byte("x")))
	}
	assert.False(t, c.Send([]byte("overflow")))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	router := &recordingRouter{}
	c := NewClient(conn, router, "robotics", "ws1", "room1")

	c.Close()
	c.Close()
	assert.True(t, conn.closed)
}

func TestClient_ReadPumpRoutesFrames(t *testing.T) {
	conn := &fakeConn{toRead: [][]byte{[]byte(`{"type":"heartbeat"}`)}}
	router := &recordingRouter{}
	c := NewClient(conn, router, "robotics", "ws1", "room1")

	c.readPump(context.Background())

	router.mu.Lock()
	defer router.mu.Unlock()
	require.Len(t, router.seen, 1)
	assert.Equal(t, `{"type":"heartbeat"}`, string(router.seen[0]))
}
