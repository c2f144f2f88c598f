// Package signaling implements the WebRTC signaling relay: stateless
// address-forwarding of offer/answer/ICE-candidate envelopes between a
// named producer and a named consumer. The relay never parses SDP or
// ICE payloads — it forwards them verbatim, doing a direct lookup and
// silently dropping a message aimed at a missing target. Shared between
// the WebSocket path (internal/router) and the request/response
// signaling endpoint (internal/control).
package signaling

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/metrics"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/roomstate"
)

var (
	ErrNotAMember   = errors.New("sender is not a member of the room")
	ErrBadTargeting = errors.New("message is missing the required targeting field")
)

// Message is the inbound signaling envelope: webrtc_offer/answer/ice
// shapes plus targeting fields. Unrecognized fields are ignored;
// SDP/Candidate are passed through opaque.
type Message struct {
	Type           string      `json:"type"`
	SDP            string      `json:"sdp,omitempty"`
	Candidate      interface{} `json:"candidate,omitempty"`
	TargetConsumer string      `json:"target_consumer,omitempty"`
	TargetProducer string      `json:"target_producer,omitempty"`
}

// Relay performs address-forwarding over the Registry and Connection
// Table. It holds no signaling-specific state of its own.
type Relay struct {
	Registry *registry.Registry
	Table    *connection.Table
}

// New constructs a Relay.
func New(reg *registry.Registry, table *connection.Table) *Relay {
	return &Relay{Registry: reg, Table: table}
}

// Forward relays one signaling message on behalf of senderID within
// (workspaceID, roomID). It looks up the sender's role to pick the
// correct targeting field and envelope shape, builds the outbound
// record, and delivers it through the Connection Table. A missing or
// closed target is dropped silently and is not an error.
func (rl *Relay) Forward(workspaceID, roomID, senderID string, msg Message) error {
	room, err := rl.Registry.GetRoom(workspaceID, roomID)
	if err != nil {
		return err
	}

	role, ok := room.RoleOf(senderID)
	if !ok {
		return ErrNotAMember
	}

	switch msg.Type {
	case "offer":
		return rl.forwardOffer(room, role, senderID, msg)
	case "answer":
		return rl.forwardAnswer(room, role, senderID, msg)
	case "ice":
		return rl.forwardICE(room, role, senderID, msg)
	default:
		return errors.New("unknown signaling message type: " + msg.Type)
	}
}

func (rl *Relay) forwardOffer(room *roomstate.Room, role roomstate.Role, senderID string, msg Message) error {
	if role != roomstate.RoleProducer {
		return ErrNotAMember
	}
	if msg.TargetConsumer == "" {
		return ErrBadTargeting
	}
	return rl.deliver(room, msg.TargetConsumer, "webrtc_offer", map[string]interface{}{
		"type":          "webrtc_offer",
		"offer":         map[string]string{"type": "offer", "sdp": msg.SDP},
		"from_producer": senderID,
	})
}

func (rl *Relay) forwardAnswer(room *roomstate.Room, role roomstate.Role, senderID string, msg Message) error {
	if role != roomstate.RoleConsumer {
		return ErrNotAMember
	}
	if msg.TargetProducer == "" {
		return ErrBadTargeting
	}
	return rl.deliver(room, msg.TargetProducer, "webrtc_answer", map[string]interface{}{
		"type":          "webrtc_answer",
		"answer":        map[string]string{"type": "answer", "sdp": msg.SDP},
		"from_consumer": senderID,
	})
}

func (rl *Relay) forwardICE(room *roomstate.Room, role roomstate.Role, senderID string, msg Message) error {
	switch role {
	case roomstate.RoleProducer:
		if msg.TargetConsumer == "" {
			return ErrBadTargeting
		}
		return rl.deliver(room, msg.TargetConsumer, "webrtc_ice", map[string]interface{}{
			"type":          "webrtc_ice",
			"candidate":     msg.Candidate,
			"from_producer": senderID,
		})
	case roomstate.RoleConsumer:
		if msg.TargetProducer == "" {
			return ErrBadTargeting
		}
		return rl.deliver(room, msg.TargetProducer, "webrtc_ice", map[string]interface{}{
			"type":          "webrtc_ice",
			"candidate":     msg.Candidate,
			"from_consumer": senderID,
		})
	default:
		return ErrNotAMember
	}
}

// deliver drops the message silently, without an error, when the target
// is absent from the Connection Table or is not a member of this room —
// a signaling message never fans out across room boundaries.
func (rl *Relay) deliver(room *roomstate.Room, targetID, kind string, frame map[string]interface{}) error {
	if !room.IsMember(targetID) {
		metrics.SignalingDropped.WithLabelValues(kind).Inc()
		return nil
	}

	frame["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if !rl.Table.Send(targetID, data) {
		metrics.SignalingDropped.WithLabelValues(kind).Inc()
		return nil
	}
	metrics.SignalingRelayed.WithLabelValues(kind).Inc()
	return nil
}
