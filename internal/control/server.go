// Package control implements the REST control surface: a
// request/response boundary over the same Registry, Router, and
// signaling Relay the bidirectional channel path uses, plus the HTTP
// endpoint that upgrades a request into one of those channels.
package control

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/ratelimit"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/brightforge/relay/internal/router"
	"github.com/brightforge/relay/internal/signaling"
	"github.com/brightforge/relay/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server holds the dependencies the control surface needs for one
// service ("robotics" or "video"). Relay is nil for robotics (no
// signaling endpoint); Limiter is nil when rate limiting is disabled.
type Server struct {
	Service        string
	Registry       *registry.Registry
	Table          *connection.Table
	Router         *router.Router
	Relay          *signaling.Relay
	Limiter        *ratelimit.Limiter
	AllowedOrigins []string
}

// New constructs a control Server for one service.
func New(service string, reg *registry.Registry, table *connection.Table, rtr *router.Router, relay *signaling.Relay, limiter *ratelimit.Limiter, allowedOrigins string) *Server {
	return &Server{
		Service:        service,
		Registry:       reg,
		Table:          table,
		Router:         rtr,
		Relay:          relay,
		Limiter:        limiter,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}
}

func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RegisterRoutes mounts every control-surface and upgrade endpoint for
// this service under "/<service>/workspaces/...".
func (s *Server) RegisterRoutes(rg gin.IRouter) {
	group := rg.Group("/" + s.Service + "/workspaces/:workspace_id/rooms")
	group.POST("", s.CreateRoom)
	group.GET("", s.ListRooms)
	group.GET("/:room_id", s.GetRoom)
	group.GET("/:room_id/state", s.GetRoomState)
	group.DELETE("/:room_id", s.DeleteRoom)
	group.GET("/:room_id/ws", s.ServeWs)

	if s.Service == "robotics" {
		if s.Limiter != nil {
			group.POST("/:room_id/command", s.Limiter.Command(), s.PostCommand)
		} else {
			group.POST("/:room_id/command", s.PostCommand)
		}
	}
	if s.Service == "video" {
		group.POST("/:room_id/webrtc/signal", s.PostSignal)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWs upgrades the request to a WebSocket and runs the client's
// pumps for the lifetime of the connection. It blocks the handler
// goroutine until the connection ends.
func (s *Server) ServeWs(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	roomID := c.Param("room_id")

	if s.Limiter != nil && !s.Limiter.CheckWebSocketConnect(c) {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	client := transport.NewClient(conn, s.Router, s.Service, workspaceID, roomID)
	client.Run(c.Request.Context())
}

// roomSummary is the projection returned by list/get — participant
// counts, config, counters.
type roomSummary struct {
	WorkspaceID    string          `json:"workspace_id"`
	RoomID         string          `json:"room_id"`
	HasProducer    bool            `json:"has_producer"`
	ConsumerCount  int             `json:"consumer_count"`
	VideoConfig    *videoCfg       `json:"video_config,omitempty"`
	RecoveryConfig json.RawMessage `json:"recovery_config,omitempty"`
	FrameCount     uint64          `json:"frame_count,omitempty"`
	TotalBytes     uint64          `json:"total_bytes,omitempty"`
	CreatedAt      string          `json:"created_at"`
	LastActivity   string          `json:"last_activity"`
}

type videoCfg struct {
	Encoding   string `json:"encoding,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	FrameRate  int    `json:"frame_rate,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	Quality    string `json:"quality,omitempty"`
}

func (s *Server) summarize(room *roomstate.Room) roomSummary {
	frames, bytes := room.Stats()
	sum := roomSummary{
		WorkspaceID:   room.WorkspaceID,
		RoomID:        room.RoomID,
		HasProducer:   room.ProducerID() != "",
		ConsumerCount: len(room.Consumers()),
		FrameCount:    frames,
		TotalBytes:    bytes,
		CreatedAt:     room.CreatedAt().UTC().Format(time.RFC3339),
		LastActivity:  room.LastActivity().UTC().Format(time.RFC3339),
	}
	if s.Service == "video" {
		cfg := room.GetVideoConfig()
		sum.VideoConfig = &videoCfg{
			Encoding:   cfg.Encoding,
			Resolution: cfg.Resolution,
			FrameRate:  cfg.FrameRate,
			Bitrate:    cfg.Bitrate,
			Quality:    cfg.Quality,
		}
		sum.RecoveryConfig = room.GetRecoveryConfig()
	}
	return sum
}
