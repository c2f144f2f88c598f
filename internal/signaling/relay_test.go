package signaling

import (
	"testing"

	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	received [][]byte
	alive    bool
}

func (f *fakeSender) Send(data []byte) bool {
	if !f.alive {
		return false
	}
	f.received = append(f.received, data)
	return true
}

func (f *fakeSender) Close() {}

func setupRoom(t *testing.T, reg *registry.Registry, table *connection.Table) {
	t.Helper()
	room, err := reg.CreateRoom("ws1", "room1")
	require.NoError(t, err)
	require.NoError(t, room.Join("producer1", roomstate.RoleProducer))
	require.NoError(t, room.Join("consumer1", roomstate.RoleConsumer))

	table.Insert(&connection.Entry{ParticipantID: "producer1", Sender: &fakeSender{alive: true}})
	table.Insert(&connection.Entry{ParticipantID: "consumer1", Sender: &fakeSender{alive: true}})
}

func TestRelay_ForwardOfferToConsumer(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "producer1", Message{
		Type:           "offer",
		SDP:            "sdp-blob",
		TargetConsumer: "consumer1",
	})
	require.NoError(t, err)

	entry, ok := table.Get("consumer1")
	require.True(t, ok)
	sender := entry.Sender.(*fakeSender)
	require.Len(t, sender.received, 1)
	assert.Contains(t, string(sender.received[0]), `"from_producer":"producer1"`)
	assert.Contains(t, string(sender.received[0]), `"sdp":"sdp-blob"`)
}

func TestRelay_ForwardAnswerToProducer(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "consumer1", Message{
		Type:           "answer",
		SDP:            "answer-blob",
		TargetProducer: "producer1",
	})
	require.NoError(t, err)

	entry, _ := table.Get("producer1")
	sender := entry.Sender.(*fakeSender)
	require.Len(t, sender.received, 1)
	assert.Contains(t, string(sender.received[0]), `"from_consumer":"consumer1"`)
}

func TestRelay_OfferRequiresProducerRole(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "consumer1", Message{
		Type:           "offer",
		TargetConsumer: "consumer1",
	})
	assert.Error(t, err)
}

func TestRelay_MissingTargetFieldIsRejected(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "producer1", Message{Type: "offer"})
	assert.ErrorIs(t, err, ErrBadTargeting)
}

func TestRelay_SenderNotInRoomIsRejected(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "ghost", Message{Type: "offer", TargetConsumer: "consumer1"})
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestRelay_DropsSilentlyWhenTargetMissing(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	err := relay.Forward("ws1", "room1", "producer1", Message{
		Type:           "offer",
		TargetConsumer: "ghost-consumer",
	})
	assert.NoError(t, err)
}

func TestRelay_DropsSilentlyWhenTargetBelongsToAnotherRoom(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	otherRoom, err := reg.CreateRoom("ws1", "room2")
	require.NoError(t, err)
	require.NoError(t, otherRoom.Join("outsider", roomstate.RoleConsumer))
	table.Insert(&connection.Entry{ParticipantID: "outsider", Sender: &fakeSender{alive: true}})

	err = relay.Forward("ws1", "room1", "producer1", Message{
		Type:           "offer",
		SDP:            "sdp-blob",
		TargetConsumer: "outsider",
	})
	assert.NoError(t, err)

	entry, ok := table.Get("outsider")
	require.True(t, ok)
	sender := entry.Sender.(*fakeSender)
	assert.Empty(t, sender.received, "a target in a different room must never receive a forwarded signal")
}

func TestRelay_ICEPicksFieldByRole(t *testing.T) {
	reg := registry.New()
	table := connection.NewTable()
	setupRoom(t, reg, table)
	relay := New(reg, table)

	require.NoError(t, relay.Forward("ws1", "room1", "producer1", Message{
		Type:           "ice",
		Candidate:      "candidate-a",
		TargetConsumer: "consumer1",
	}))
	entry, _ := table.Get("consumer1")
	sender := entry.Sender.(*fakeSender)
	require.Len(t, sender.received, 1)
	assert.Contains(t, string(sender.received[0]), `"from_producer":"producer1"`)
}
