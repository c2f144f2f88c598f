package router

import (
	"context"
	"encoding/json"

	"github.com/brightforge/relay/internal/metrics"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/brightforge/relay/internal/transport"
)

// jointRecordWire is the wire shape of one joint_update entry. Speed is
// accepted and echoed but never stored.
type jointRecordWire struct {
	Name  string   `json:"name"`
	Value float64  `json:"value"`
	Speed *float64 `json:"speed,omitempty"`
}

type jointUpdateFrame struct {
	Data []jointRecordWire `json:"data"`
}

type emergencyStopFrame struct {
	Reason string `json:"reason,omitempty"`
}

func robotcsHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"joint_update":   handleJointUpdate,
		"heartbeat":      handleHeartbeat,
		"emergency_stop": handleEmergencyStop,
		"state_sync":     handleRejectServerOnly,
	}
}

// handleJointUpdate implements the robotics state-delta algorithm: only
// the producer may send it; the delta is computed under the room lock
// and broadcast to consumers only when non-empty.
func handleJointUpdate(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	if room.ProducerID() != c.ParticipantID {
		r.sendError(c, "only the producer may send joint_update", "authorization")
		return
	}

	var frame jointUpdateFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.sendError(c, "malformed joint_update", "protocol")
		return
	}

	records := make([]roomstate.JointRecord, 0, len(frame.Data))
	for _, rec := range frame.Data {
		records = append(records, roomstate.JointRecord{Name: rec.Name, Value: rec.Value})
	}

	delta := room.ApplyJointDelta(records)
	if len(delta) == 0 {
		return
	}

	speeds := make(map[string]*float64)
	for _, rec := range frame.Data {
		speeds[rec.Name] = rec.Speed
	}
	wire := deltaToWire(delta)
	for i := range wire {
		wire[i].Speed = speeds[wire[i].Name]
	}

	metrics.JointUpdatesBroadcast.WithLabelValues(c.WorkspaceID, c.RoomID).Inc()
	r.broadcastToConsumers(room, stampTimestamp(map[string]interface{}{
		"type":   "joint_update",
		"data":   wire,
		"source": c.ParticipantID,
	}))
}

// ApplyOutOfBandCommand runs the identical state-delta algorithm for the
// control surface's command-injection endpoint: source is always the
// literal "api", and the role check is bypassed entirely.
func (r *Router) ApplyOutOfBandCommand(workspaceID, roomID string, records []roomstate.JointRecord) (int, error) {
	room, err := r.Registry.GetRoom(workspaceID, roomID)
	if err != nil {
		return 0, err
	}

	delta := room.ApplyJointDelta(records)
	if len(delta) == 0 {
		return 0, nil
	}

	metrics.JointUpdatesBroadcast.WithLabelValues(workspaceID, roomID).Inc()
	r.broadcastToConsumers(room, stampTimestamp(map[string]interface{}{
		"type":   "joint_update",
		"data":   deltaToWire(delta),
		"source": "api",
	}))
	return len(delta), nil
}

func deltaToWire(delta map[string]float64) []jointRecordWire {
	out := make([]jointRecordWire, 0, len(delta))
	for name, value := range delta {
		out = append(out, jointRecordWire{Name: name, Value: value})
	}
	return out
}

func handleHeartbeat(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	room.Touch()
	c.SendJSON(stampTimestamp(map[string]interface{}{
		"type": "heartbeat_ack",
	}))
}

// handleEmergencyStop broadcasts to the producer and all consumers,
// including the sender, unlike most other tags.
func handleEmergencyStop(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	var frame emergencyStopFrame
	_ = json.Unmarshal(raw, &frame)

	room.Touch()
	r.broadcastAll(room, stampTimestamp(map[string]interface{}{
		"type":   "emergency_stop",
		"reason": frame.Reason,
		"source": c.ParticipantID,
	}))
}

// handleRejectServerOnly handles tags that are server-originated and
// never legally sent by a client (state_sync in robotics).
func handleRejectServerOnly(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	r.sendError(c, "state_sync is server-originated only", "protocol")
}
