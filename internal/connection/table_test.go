package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   [][]byte
	accept bool
	closed bool
}

func (f *fakeSender) Send(data []byte) bool {
	if !f.accept {
		return false
	}
	f.sent = append(f.sent, data)
	return true
}

func (f *fakeSender) Close() { f.closed = true }

func TestTable_InsertGetRemove(t *testing.T) {
	tbl := NewTable()
	sender := &fakeSender{accept: true}
	tbl.Insert(&Entry{ParticipantID: "p1", WorkspaceID: "ws", RoomID: "r1", Role: "producer", Sender: sender})

	e, ok := tbl.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "producer", e.Role)

	removed, ok := tbl.Remove("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", removed.ParticipantID)

	_, ok = tbl.Get("p1")
	assert.False(t, ok)
}

func TestTable_SendMissingParticipant(t *testing.T) {
	tbl := NewTable()
	assert.False(t, tbl.Send("ghost", []byte("x")))
}

func TestTable_SendDropsWhenSenderRejects(t *testing.T) {
	tbl := NewTable()
	sender := &fakeSender{accept: false}
	tbl.Insert(&Entry{ParticipantID: "p1", Sender: sender})
	assert.False(t, tbl.Send("p1", []byte("x")))
}

func TestTable_Touch(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(&Entry{ParticipantID: "p1", Sender: &fakeSender{accept: true}})
	now := time.Now()
	tbl.Touch("p1", now)
	e, _ := tbl.Get("p1")
	assert.Equal(t, now, e.LastActivity)
	assert.Equal(t, uint64(1), e.MessageCount)
}

func TestTable_EntriesForRoom(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(&Entry{ParticipantID: "p1", WorkspaceID: "ws", RoomID: "r1", Sender: &fakeSender{accept: true}})
	tbl.Insert(&Entry{ParticipantID: "p2", WorkspaceID: "ws", RoomID: "r2", Sender: &fakeSender{accept: true}})

	entries := tbl.EntriesForRoom("ws", "r1")
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].ParticipantID)
}
