package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGetRoom(t *testing.T) {
	reg := New()
	r, err := reg.CreateRoom("ws1", "room1")
	require.NoError(t, err)
	assert.Equal(t, "room1", r.RoomID)

	got, err := reg.GetRoom("ws1", "room1")
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestRegistry_CreateRoomGeneratesIDWhenEmpty(t *testing.T) {
	reg := New()
	r, err := reg.CreateRoom("ws1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, r.RoomID)
}

func TestRegistry_CreateRoomDuplicateRejected(t *testing.T) {
	reg := New()
	_, err := reg.CreateRoom("ws1", "room1")
	require.NoError(t, err)

	_, err = reg.CreateRoom("ws1", "room1")
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)
}

func TestRegistry_GetRoomMissingWorkspace(t *testing.T) {
	reg := New()
	_, err := reg.GetRoom("ghost", "room1")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestRegistry_GetRoomMissingRoom(t *testing.T) {
	reg := New()
	_, err := reg.CreateRoom("ws1", "room1")
	require.NoError(t, err)

	_, err = reg.GetRoom("ws1", "ghost")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_GetOrCreateRoomIsIdempotent(t *testing.T) {
	reg := New()
	r1 := reg.GetOrCreateRoom("ws1", "room1")
	r2 := reg.GetOrCreateRoom("ws1", "room1")
	assert.Same(t, r1, r2)
}

func TestRegistry_ListRooms(t *testing.T) {
	reg := New()
	_, _ = reg.CreateRoom("ws1", "room1")
	_, _ = reg.CreateRoom("ws1", "room2")

	rooms, err := reg.ListRooms("ws1")
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestRegistry_ListRoomsMissingWorkspace(t *testing.T) {
	reg := New()
	_, err := reg.ListRooms("ghost")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestRegistry_DeleteRoomPrunesEmptyWorkspace(t *testing.T) {
	reg := New()
	_, _ = reg.CreateRoom("ws1", "room1")

	require.NoError(t, reg.DeleteRoom("ws1", "room1"))
	assert.Equal(t, 0, reg.WorkspaceCount())

	_, err := reg.GetRoom("ws1", "room1")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestRegistry_DeleteRoomMissing(t *testing.T) {
	reg := New()
	err := reg.DeleteRoom("ws1", "room1")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)

	_, _ = reg.CreateRoom("ws1", "room1")
	err = reg.DeleteRoom("ws1", "ghost")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_AllRooms(t *testing.T) {
	reg := New()
	_, _ = reg.CreateRoom("ws1", "room1")
	_, _ = reg.CreateRoom("ws2", "room2")

	assert.Len(t, reg.AllRooms(), 2)
}
