package router

import (
	"context"
	"encoding/json"

	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/brightforge/relay/internal/signaling"
	"github.com/brightforge/relay/internal/transport"
	"go.uber.org/zap"
)

func videoHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"heartbeat":           handleHeartbeat,
		"stream_started":      handleProducerOnlyBroadcastOthers,
		"stream_stopped":      handleProducerOnlyBroadcastOthers,
		"video_config_update": handleVideoConfigUpdate,
		"status_update":       handleBroadcastOthers,
		"stream_stats":        handleStreamStats,
		"recovery_triggered":  handleBroadcastOthers,
		"emergency_stop":      handleEmergencyStop,
		"webrtc_offer":        handleWebRTCOffer,
		"webrtc_answer":       handleWebRTCAnswer,
		"webrtc_ice":          handleWebRTCICE,
	}
}

// handleProducerOnlyBroadcastOthers covers stream_started/stream_stopped:
// producer-only, broadcast excludes the sender.
func handleProducerOnlyBroadcastOthers(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	if room.ProducerID() != c.ParticipantID {
		r.sendError(c, "only the producer may send this message", "authorization")
		return
	}
	room.Touch()
	frame := decodeFrameAsMap(raw)
	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(frame))
}

// handleBroadcastOthers covers status_update and recovery_triggered:
// anyone may send, broadcast excludes the sender.
func handleBroadcastOthers(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	room.Touch()
	frame := decodeFrameAsMap(raw)
	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(frame))
}

type videoConfigUpdateFrame struct {
	Encoding   *string `json:"encoding,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
	FrameRate  *int    `json:"frame_rate,omitempty"`
	Bitrate    *int    `json:"bitrate,omitempty"`
	Quality    *string `json:"quality,omitempty"`
}

// handleVideoConfigUpdate merges a producer's provided subfields into the
// room's config (partial merge, not a full replace) and broadcasts the
// resulting update to everyone else. An update from any other
// participant leaves the room config unchanged and is relayed as sent.
func handleVideoConfigUpdate(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	var frame videoConfigUpdateFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.sendError(c, "malformed video_config_update", "protocol")
		return
	}

	if room.ProducerID() != c.ParticipantID {
		room.Touch()
		r.broadcastExcept(room, c.ParticipantID, stampTimestamp(decodeFrameAsMap(raw)))
		return
	}

	cfg := room.GetVideoConfig()
	if frame.Encoding != nil {
		cfg.Encoding = *frame.Encoding
	}
	if frame.Resolution != nil {
		cfg.Resolution = *frame.Resolution
	}
	if frame.FrameRate != nil {
		cfg.FrameRate = *frame.FrameRate
	}
	if frame.Bitrate != nil {
		cfg.Bitrate = *frame.Bitrate
	}
	if frame.Quality != nil {
		cfg.Quality = *frame.Quality
	}
	room.SetVideoConfig(cfg)

	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(map[string]interface{}{
		"type":       "video_config_update",
		"encoding":   cfg.Encoding,
		"resolution": cfg.Resolution,
		"frame_rate": cfg.FrameRate,
		"bitrate":    cfg.Bitrate,
		"quality":    cfg.Quality,
	}))
}

type streamStatsFrame struct {
	FrameCount uint64 `json:"frame_count"`
	TotalBytes uint64 `json:"total_bytes"`
}

func handleStreamStats(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	var frame streamStatsFrame
	_ = json.Unmarshal(raw, &frame)
	room.RecordStreamStats(frame.FrameCount, frame.TotalBytes)

	r.broadcastExcept(room, c.ParticipantID, stampTimestamp(decodeFrameAsMap(raw)))
}

func decodeFrameAsMap(raw []byte) map[string]interface{} {
	out := make(map[string]interface{})
	_ = json.Unmarshal(raw, &out)
	return out
}

// handleWebRTCOffer/Answer/ICE delegate to the shared signaling relay
// (internal/signaling), reusing the exact address-forwarding logic the
// request/response signaling endpoint uses.
func handleWebRTCOffer(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	forwardSignal(ctx, r, c, raw)
}

func handleWebRTCAnswer(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	forwardSignal(ctx, r, c, raw)
}

func handleWebRTCICE(ctx context.Context, r *Router, c *transport.Client, room *roomstate.Room, raw []byte) {
	forwardSignal(ctx, r, c, raw)
}

func forwardSignal(ctx context.Context, r *Router, c *transport.Client, raw []byte) {
	var msg signaling.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.sendError(c, "malformed signaling frame", "protocol")
		return
	}
	msg.Type = wireTypeToSignalType(msg.Type)

	if err := r.Relay.Forward(c.WorkspaceID, c.RoomID, c.ParticipantID, msg); err != nil {
		logging.Info(ctx, "signaling forward rejected",
			zap.String("participant_id", c.ParticipantID),
			zap.Error(err))
		r.sendError(c, "signaling rejected", "authorization")
	}
}

func wireTypeToSignalType(wireType string) string {
	switch wireType {
	case "webrtc_offer":
		return "offer"
	case "webrtc_answer":
		return "answer"
	case "webrtc_ice":
		return "ice"
	default:
		return wireType
	}
}
