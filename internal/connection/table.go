// Package connection implements the Connection Table: the single place
// that owns live send handles for participants. The Room (internal/roomstate)
// never holds a reference to a Sender — it holds participant ID strings
// only, avoiding a Room <-> connection reference cycle. Keeping the
// Table independent also means its lock is never held while a Room lock
// is held, and vice versa; every send-failure cleanup path removes from
// the Table first, then leaves the Room, in that order.
package connection

import (
	"sync"
	"time"
)

// Sender delivers a raw outbound frame to one participant's transport.
// Send must be non-blocking: it reports whether the frame was enqueued,
// never blocks the caller on a slow or dead peer.
type Sender interface {
	Send(data []byte) bool
	Close()
}

// Entry is everything the Connection Table knows about one live
// participant, independent of the Room holding their membership.
type Entry struct {
	ParticipantID string
	WorkspaceID   string
	RoomID        string
	Role          string // "producer" | "consumer"
	Sender        Sender
	ConnectedAt   time.Time
	LastActivity  time.Time
	MessageCount  uint64
}

// Table is the Connection Table: insert/remove/lookup/touch, guarded by
// its own lock, independent of any Room's lock.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewTable constructs an empty Connection Table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Insert adds or replaces the entry for a participant.
func (t *Table) Insert(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[e.ParticipantID] = e
}

// Remove deletes a participant's entry, returning it if present.
func (t *Table) Remove(participantID string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[participantID]
	if ok {
		delete(t.entries, participantID)
	}
	return e, ok
}

// Get returns a copy of a participant's metadata.
func (t *Table) Get(participantID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[participantID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Touch bumps last-activity and the message counter for a participant.
// No-op if the participant is absent (e.g. evicted mid-flight).
func (t *Table) Touch(participantID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[participantID]; ok {
		e.LastActivity = at
		e.MessageCount++
	}
}

// Send looks up a participant and hands data to their Sender. Returns
// false if the participant is absent or the send was dropped. The
// router's broadcast paths treat both identically (evict, notify room);
// the signaling relay drops the message without evicting.
func (t *Table) Send(participantID string, data []byte) bool {
	t.mu.RLock()
	e, ok := t.entries[participantID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return e.Sender.Send(data)
}

// EntriesForRoom returns copies of the live entries scoped to a
// workspace/room pair — used by the sweeper to compute effective last
// activity and by room eviction.
func (t *Table) EntriesForRoom(workspaceID, roomID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Entry
	for _, e := range t.entries {
		if e.WorkspaceID == workspaceID && e.RoomID == roomID {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the total number of tracked connections.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
