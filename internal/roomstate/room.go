// Package roomstate implements the room/participant state machine: the
// producer slot, the ordered consumer list, the robotics joints map, and
// the video config/stats fields. A Room holds only participant ID
// strings — never a send handle — so that the Connection Table
// (internal/connection) remains the sole owner of channel handles.
package roomstate

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Role is the closed two-case sum a participant takes in a room.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

var (
	ErrProducerConflict = errors.New("room already has a producer")
	ErrAlreadyMember    = errors.New("participant already a member of this room")
	ErrIdentifierInUse  = errors.New("participant id already in use in this room")
	ErrNotMember        = errors.New("participant is not a member of this room")
	ErrUnknownRole      = errors.New("unknown role")
)

// VideoConfig holds the mutable per-room video negotiation parameters a
// producer can update via VIDEO_CONFIG_UPDATE. All fields are optional;
// a field left unset keeps its zero value, and no defaults are filled in.
type VideoConfig struct {
	Encoding   string `json:"encoding,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	FrameRate  int    `json:"frame_rate,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	Quality    string `json:"quality,omitempty"`
}

// Room is the authoritative state machine for one workspace/room pair.
// One lock guards the producer slot, the consumer list, the joints map,
// the video config, and last_activity.
type Room struct {
	WorkspaceID string
	RoomID      string

	mu sync.RWMutex

	producerID string // "" means EMPTY
	consumers  []string
	consumerSet map[string]struct{}

	joints map[string]float64

	videoConfig    VideoConfig
	recoveryConfig json.RawMessage
	frameCount     uint64
	totalBytes     uint64

	createdAt    time.Time
	lastActivity time.Time
}

// New constructs an empty room.
func New(workspaceID, roomID string) *Room {
	now := time.Now()
	return &Room{
		WorkspaceID:  workspaceID,
		RoomID:       roomID,
		consumerSet:  make(map[string]struct{}),
		joints:       make(map[string]float64),
		createdAt:    now,
		lastActivity: now,
	}
}

// Join admits a participant under the given role. Returns
// ErrProducerConflict if role is producer and the slot is already held,
// ErrIdentifierInUse if the id collides with the existing producer or any
// consumer (including a consumer re-joining without leaving), or
// ErrUnknownRole for any other role.
func (r *Room) Join(participantID string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producerID == participantID || r.hasConsumerLocked(participantID) {
		return ErrIdentifierInUse
	}

	switch role {
	case RoleProducer:
		if r.producerID != "" {
			return ErrProducerConflict
		}
		r.producerID = participantID
	case RoleConsumer:
		r.consumers = append(r.consumers, participantID)
		r.consumerSet[participantID] = struct{}{}
	default:
		return ErrUnknownRole
	}

	r.touchLocked()
	return nil
}

// Leave removes a participant, idempotently. Leaving a non-member is a
// no-op.
func (r *Room) Leave(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producerID == participantID {
		r.producerID = ""
		r.touchLocked()
		return
	}
	if !r.hasConsumerLocked(participantID) {
		return
	}
	delete(r.consumerSet, participantID)
	for i, id := range r.consumers {
		if id == participantID {
			r.consumers = append(r.consumers[:i], r.consumers[i+1:]...)
			break
		}
	}
	r.touchLocked()
}

func (r *Room) hasConsumerLocked(participantID string) bool {
	_, ok := r.consumerSet[participantID]
	return ok
}

// ProducerID returns the current producer, or "" if the slot is empty.
func (r *Room) ProducerID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producerID
}

// Consumers returns a snapshot of the consumer list, copied under the
// room lock so the caller can range over it after releasing the lock.
func (r *Room) Consumers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.consumers))
	copy(out, r.consumers)
	return out
}

// IsMember reports whether a participant is the producer or a consumer.
func (r *Room) IsMember(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producerID == participantID || r.hasConsumerLocked(participantID)
}

// RoleOf returns the role of a member, or ok=false if not a member.
func (r *Room) RoleOf(participantID string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.producerID == participantID {
		return RoleProducer, true
	}
	if r.hasConsumerLocked(participantID) {
		return RoleConsumer, true
	}
	return "", false
}

// JointRecord is the {name, value} part of one joint_update entry or
// out-of-band command entry; an optional speed is never stored here.
type JointRecord struct {
	Name  string
	Value float64
}

// ApplyJointDelta runs the state-delta algorithm: for each record, compare
// against the stored value with strict equality (no epsilon); unchanged
// values are dropped, changed ones overwrite the map and appear in the
// returned delta. An empty delta (nil records, or every record a no-op
// repeat) means no broadcast should happen.
func (r *Room) ApplyJointDelta(records []JointRecord) map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	delta := make(map[string]float64)
	for _, rec := range records {
		if existing, ok := r.joints[rec.Name]; ok && existing == rec.Value {
			continue
		}
		r.joints[rec.Name] = rec.Value
		delta[rec.Name] = rec.Value
	}
	if len(delta) > 0 {
		r.touchLocked()
	}
	return delta
}

// JointsSnapshot returns a copy of the full joints map, sent as
// STATE_SYNC to a newly-joined robotics consumer. May be empty, never nil.
func (r *Room) JointsSnapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.joints))
	for k, v := range r.joints {
		out[k] = v
	}
	return out
}

// GetVideoConfig returns a copy of the current video config.
func (r *Room) GetVideoConfig() VideoConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.videoConfig
}

// SetVideoConfig overwrites the video config (room creation, or
// VIDEO_CONFIG_UPDATE from the producer) and touches last_activity.
func (r *Room) SetVideoConfig(cfg VideoConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoConfig = cfg
	r.touchLocked()
}

// GetRecoveryConfig returns the opaque recovery_config bag, or nil if
// never set. The room never interprets its contents.
func (r *Room) GetRecoveryConfig() json.RawMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recoveryConfig
}

// SetRecoveryConfig overwrites the opaque recovery_config bag passed
// through to clients. The room stores it verbatim without interpreting it.
func (r *Room) SetRecoveryConfig(cfg json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoveryConfig = cfg
	r.touchLocked()
}

// RecordStreamStats accumulates frame/byte counters reported via
// STREAM_STATS.
func (r *Room) RecordStreamStats(frames, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameCount += frames
	r.totalBytes += bytes
	r.touchLocked()
}

// Stats returns the accumulated frame_count/total_bytes counters, used by
// the control surface's room summary and state-snapshot responses.
func (r *Room) Stats() (frameCount, totalBytes uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frameCount, r.totalBytes
}

// Touch marks activity without changing any other state (e.g. on
// HEARTBEAT).
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

// LastActivity returns the room's own last-activity timestamp. The
// sweeper combines this with the Connection Table's per-connection
// activity to compute effective last activity.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// CreatedAt returns room creation time.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// IsEmpty reports whether the room has no producer and no consumers.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producerID == "" && len(r.consumers) == 0
}
