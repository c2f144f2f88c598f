package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestClient_RunExitsWithoutLeakingWritePump drives a full Client.Run
// lifecycle and closes the connection, verifying the writePump goroutine
// it spawns does not outlive the call. TestMain's goleak check would
// otherwise only surface this at process exit.
func TestClient_RunExitsWithoutLeakingWritePump(t *testing.T) {
	conn := &fakeConn{toRead: [][]byte{[]byte(`{"type":"heartbeat"}`)}}
	router := &recordingRouter{}
	c := NewClient(conn, router, "robotics", "ws1", "room1")

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the read pump exhausted its fake connection")
	}

	require.True(t, conn.closed)
}
