// Package registry implements the two-level Workspace -> Room index.
// It owns room lifecycle (create/list/get/delete) but not connection
// state or eviction scheduling — that belongs to internal/connection and
// internal/sweeper respectively. This registry has no grace-period
// timers of its own; it is pure CRUD over two nested maps, and the
// sweeper owns timeout-based eviction.
package registry

import (
	"errors"
	"sync"

	"github.com/brightforge/relay/internal/roomstate"
	"github.com/google/uuid"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
)

// Registry is the top-level Workspace -> Room directory. One lock
// guards the two nested maps; individual Room state is guarded by the
// Room's own lock (internal/roomstate), never this one.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]map[string]*roomstate.Room
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{workspaces: make(map[string]map[string]*roomstate.Room)}
}

// CreateRoom creates a room under a workspace. If roomID is empty, one is
// generated. Returns ErrRoomAlreadyExists if roomID collides with an
// existing room in the same workspace.
func (reg *Registry) CreateRoom(workspaceID, roomID string) (*roomstate.Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms, ok := reg.workspaces[workspaceID]
	if !ok {
		rooms = make(map[string]*roomstate.Room)
		reg.workspaces[workspaceID] = rooms
	}

	if roomID == "" {
		roomID = uuid.NewString()
	}
	if _, exists := rooms[roomID]; exists {
		return nil, ErrRoomAlreadyExists
	}

	r := roomstate.New(workspaceID, roomID)
	rooms[roomID] = r
	return r, nil
}

// GetRoom returns the room for a workspace/room pair.
func (reg *Registry) GetRoom(workspaceID, roomID string) (*roomstate.Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms, ok := reg.workspaces[workspaceID]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	r, ok := rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// GetOrCreateRoom returns the existing room, or creates one with the given
// id if absent. Used by the join path, where the first participant to
// reference a room id implicitly creates it.
func (reg *Registry) GetOrCreateRoom(workspaceID, roomID string) *roomstate.Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms, ok := reg.workspaces[workspaceID]
	if !ok {
		rooms = make(map[string]*roomstate.Room)
		reg.workspaces[workspaceID] = rooms
	}
	if r, exists := rooms[roomID]; exists {
		return r
	}
	r := roomstate.New(workspaceID, roomID)
	rooms[roomID] = r
	return r
}

// ListRooms returns every room in a workspace. Returns ErrWorkspaceNotFound
// if the workspace has never had a room created in it.
func (reg *Registry) ListRooms(workspaceID string) ([]*roomstate.Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms, ok := reg.workspaces[workspaceID]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	out := make([]*roomstate.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	return out, nil
}

// DeleteRoom removes a room from the registry outright. Callers are
// expected to have already evicted its connections (internal/sweeper or
// internal/control do this before calling DeleteRoom).
func (reg *Registry) DeleteRoom(workspaceID, roomID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms, ok := reg.workspaces[workspaceID]
	if !ok {
		return ErrWorkspaceNotFound
	}
	if _, ok := rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(reg.workspaces, workspaceID)
	}
	return nil
}

// AllRooms returns every room across every workspace, used by the
// sweeper's periodic scan.
func (reg *Registry) AllRooms() []*roomstate.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var out []*roomstate.Room
	for _, rooms := range reg.workspaces {
		for _, r := range rooms {
			out = append(out, r)
		}
	}
	return out
}

// WorkspaceCount reports the number of workspaces with at least one room.
func (reg *Registry) WorkspaceCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.workspaces)
}
