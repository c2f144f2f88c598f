// Package router implements the typed message dispatcher shared by both
// services: a join handshake followed by a tag-dispatch loop over
// decoded JSON frames, keyed by a discriminated-union "type" tag rather
// than a chain of string comparisons in the hot path.
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/metrics"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/brightforge/relay/internal/signaling"
	"github.com/brightforge/relay/internal/transport"
	"go.uber.org/zap"
)

// Envelope is the minimal shape every inbound frame after the first is
// decoded into: a tag plus the raw body for tag-specific unmarshalling.
type Envelope struct {
	Type string `json:"type"`
}

// JoinFrame is the mandatory first inbound frame. It carries no "type"
// field; the router special-cases the first read for every client.
type JoinFrame struct {
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role"`
}

// handlerFunc processes one decoded frame for an already-joined client.
type handlerFunc func(ctx context.Context, router *Router, c *transport.Client, room *roomstate.Room, raw []byte)

// Router dispatches inbound frames for one service ("robotics" or
// "video"). It is safe for concurrent use; all mutable state lives in
// the Registry, the rooms it holds, and the Connection Table.
type Router struct {
	Service  string
	Registry *registry.Registry
	Table    *connection.Table
	Relay    *signaling.Relay
	handlers map[string]handlerFunc
}

// New constructs a Router for one service with its tag dispatch table
// already populated. relay is nil for the robotics service, which has no
// signaling surface.
func New(service string, reg *registry.Registry, table *connection.Table, relay *signaling.Relay) *Router {
	r := &Router{Service: service, Registry: reg, Table: table, Relay: relay}
	switch service {
	case "robotics":
		r.handlers = robotcsHandlers()
	case "video":
		r.handlers = videoHandlers()
	default:
		r.handlers = map[string]handlerFunc{}
	}
	return r
}

// Route implements transport.Router. It is invoked once per inbound
// frame from the client's read pump. The first frame for a client is
// always treated as the join handshake regardless of its "type" field.
func (r *Router) Route(ctx context.Context, c *transport.Client, raw []byte) {
	if c.ParticipantID == "" {
		r.handleJoin(ctx, c, raw)
		return
	}

	room, err := r.Registry.GetRoom(c.WorkspaceID, c.RoomID)
	if err != nil {
		r.sendError(c, "room no longer exists", "not_found")
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		r.sendError(c, "malformed frame: missing type", "protocol")
		return
	}

	r.Table.Touch(c.ParticipantID, time.Now())

	handler, ok := r.handlers[env.Type]
	if !ok {
		metrics.RouterMessages.WithLabelValues(r.Service, env.Type, "unknown").Inc()
		r.sendError(c, "unknown message type: "+env.Type, "protocol")
		return
	}

	start := time.Now()
	handler(ctx, r, c, room, raw)
	metrics.MessageProcessingDuration.WithLabelValues(r.Service, env.Type).Observe(time.Since(start).Seconds())
	metrics.RouterMessages.WithLabelValues(r.Service, env.Type, "ok").Inc()
}

func (r *Router) handleJoin(ctx context.Context, c *transport.Client, raw []byte) {
	var join JoinFrame
	if err := json.Unmarshal(raw, &join); err != nil || join.ParticipantID == "" {
		r.sendErrorRaw(c, "malformed join frame")
		c.Close()
		return
	}

	var role roomstate.Role
	switch join.Role {
	case "producer":
		role = roomstate.RoleProducer
	case "consumer":
		role = roomstate.RoleConsumer
	default:
		r.sendErrorRaw(c, "invalid role")
		c.Close()
		return
	}

	room := r.Registry.GetOrCreateRoom(c.WorkspaceID, c.RoomID)
	if err := room.Join(join.ParticipantID, role); err != nil {
		logging.Info(ctx, "join rejected",
			zap.String("service", r.Service),
			zap.String("participant_id", join.ParticipantID),
			zap.Error(err))
		r.sendErrorRaw(c, "Cannot join room")
		c.Close()
		return
	}

	c.SetParticipant(join.ParticipantID, join.Role)
	r.Table.Insert(&connection.Entry{
		ParticipantID: join.ParticipantID,
		WorkspaceID:   c.WorkspaceID,
		RoomID:        c.RoomID,
		Role:          join.Role,
		Sender:        c,
		ConnectedAt:   time.Now(),
		LastActivity:  time.Now(),
	})
	metrics.ActiveConnections.WithLabelValues(r.Service).Inc()
	metrics.RoomParticipants.WithLabelValues(r.Service, c.WorkspaceID, c.RoomID).Inc()

	if r.Service == "robotics" && role == roomstate.RoleConsumer {
		c.SendJSON(stampTimestamp(map[string]interface{}{
			"type": "state_sync",
			"data": room.JointsSnapshot(),
		}))
	}

	c.SendJSON(stampTimestamp(map[string]interface{}{
		"type":         "joined",
		"workspace_id": c.WorkspaceID,
		"room_id":      c.RoomID,
		"role":         join.Role,
	}))

	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(map[string]interface{}{
		"type":           "participant_joined",
		"participant_id": join.ParticipantID,
		"role":           join.Role,
	}))
}

// HandleDisconnect removes a participant from the Connection Table and
// the room, then notifies the survivors. Called when the client's read
// pump exits; send failures are cleaned up by evictDead instead. If the
// participant is no longer in the Connection Table (already removed by
// evictDead or EvictRoom), that cleanup has run and nothing is repeated.
func (r *Router) HandleDisconnect(c *transport.Client) {
	if c.ParticipantID == "" {
		return
	}

	if _, ok := r.Table.Remove(c.ParticipantID); !ok {
		return
	}
	metrics.ActiveConnections.WithLabelValues(r.Service).Dec()

	room, err := r.Registry.GetRoom(c.WorkspaceID, c.RoomID)
	if err != nil {
		return
	}
	room.Leave(c.ParticipantID)
	metrics.RoomParticipants.WithLabelValues(r.Service, c.WorkspaceID, c.RoomID).Dec()

	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(map[string]interface{}{
		"type":           "participant_left",
		"participant_id": c.ParticipantID,
	}))
}

// broadcastAll sends a frame to the producer and every consumer,
// including the sender if present in the room.
func (r *Router) broadcastAll(room *roomstate.Room, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal broadcast", zap.Error(err))
		return
	}
	for _, id := range r.recipientsLocked(room) {
		if !r.Table.Send(id, data) {
			r.evictDead(id)
		}
	}
}

// broadcastExcept sends a frame to everyone in the room except excludeID.
func (r *Router) broadcastExcept(room *roomstate.Room, excludeID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal broadcast", zap.Error(err))
		return
	}
	for _, id := range r.recipientsLocked(room) {
		if id == excludeID {
			continue
		}
		if !r.Table.Send(id, data) {
			r.evictDead(id)
		}
	}
}

// broadcastToConsumers sends a frame to every consumer only (used by the
// robotics joint-update delta broadcast).
func (r *Router) broadcastToConsumers(room *roomstate.Room, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal broadcast", zap.Error(err))
		return
	}
	for _, id := range room.Consumers() {
		if !r.Table.Send(id, data) {
			r.evictDead(id)
		}
	}
}

func (r *Router) recipientsLocked(room *roomstate.Room) []string {
	ids := room.Consumers()
	if producer := room.ProducerID(); producer != "" {
		ids = append([]string{producer}, ids...)
	}
	return ids
}

// evictDead runs the cleanup discipline for a participant whose send
// failed, mirroring HandleDisconnect but without re-notifying the peer
// that just failed to receive.
func (r *Router) evictDead(participantID string) {
	entry, ok := r.Table.Remove(participantID)
	if !ok {
		return
	}
	metrics.ActiveConnections.WithLabelValues(r.Service).Dec()
	room, err := r.Registry.GetRoom(entry.WorkspaceID, entry.RoomID)
	if err != nil {
		return
	}
	room.Leave(participantID)
	metrics.RoomParticipants.WithLabelValues(r.Service, entry.WorkspaceID, entry.RoomID).Dec()
	r.broadcastExcept(room, participantID, stampTimestamp(map[string]interface{}{
		"type":           "participant_left",
		"participant_id": participantID,
	}))
}

// EvictRoom forcibly closes every live connection in a room without
// waiting for a graceful client acknowledgment. It satisfies
// sweeper.Disconnector. The room itself is removed from the Registry by
// the caller immediately afterward.
func (r *Router) EvictRoom(workspaceID, roomID string) {
	for _, entry := range r.Table.EntriesForRoom(workspaceID, roomID) {
		entry.Sender.Close()
		r.Table.Remove(entry.ParticipantID)
		metrics.ActiveConnections.WithLabelValues(r.Service).Dec()
	}
}

func (r *Router) sendError(c *transport.Client, message, code string) {
	c.SendJSON(stampTimestamp(map[string]interface{}{
		"type":    "error",
		"message": message,
		"code":    code,
	}))
}

func (r *Router) sendErrorRaw(c *transport.Client, message string) {
	c.SendJSON(stampTimestamp(map[string]interface{}{
		"type":    "error",
		"message": message,
	}))
}

func stampTimestamp(frame map[string]interface{}) map[string]interface{} {
	frame["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return frame
}
