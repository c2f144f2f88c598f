package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brightforge/relay/internal/metrics"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/roomstate"
	"github.com/brightforge/relay/internal/signaling"
	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	RoomID         string             `json:"room_id"`
	Config         *videoConfigFields `json:"config"`
	RecoveryConfig json.RawMessage    `json:"recovery_config"`
}

type videoConfigFields struct {
	Encoding   string `json:"encoding"`
	Resolution string `json:"resolution"`
	FrameRate  int    `json:"frame_rate"`
	Bitrate    int    `json:"bitrate"`
	Quality    string `json:"quality"`
}

// CreateRoom handles POST /{service}/workspaces/{ws}/rooms.
func (s *Server) CreateRoom(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	var req createRoomRequest
	// A missing or empty body is valid; room_id/config are both optional.
	_ = c.ShouldBindJSON(&req)

	room, err := s.Registry.CreateRoom(workspaceID, req.RoomID)
	if err != nil {
		if errors.Is(err, registry.ErrRoomAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	if s.Service == "video" {
		if req.Config != nil {
			room.SetVideoConfig(roomstate.VideoConfig{
				Encoding:   req.Config.Encoding,
				Resolution: req.Config.Resolution,
				FrameRate:  req.Config.FrameRate,
				Bitrate:    req.Config.Bitrate,
				Quality:    req.Config.Quality,
			})
		}
		if req.RecoveryConfig != nil {
			room.SetRecoveryConfig(req.RecoveryConfig)
		}
	}

	metrics.ActiveRooms.WithLabelValues(s.Service).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"workspace_id": room.WorkspaceID,
		"room_id":      room.RoomID,
	})
}

// ListRooms handles GET /{service}/workspaces/{ws}/rooms. An unknown
// workspace returns an empty list, not an error.
func (s *Server) ListRooms(c *gin.Context) {
	workspaceID := c.Param("workspace_id")

	rooms, err := s.Registry.ListRooms(workspaceID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"rooms": []roomSummary{}})
		return
	}

	summaries := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, s.summarize(room))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// GetRoom handles GET /{service}/workspaces/{ws}/rooms/{room}.
func (s *Server) GetRoom(c *gin.Context) {
	room, ok := s.lookupRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.summarize(room))
}

// GetRoomState handles GET /{service}/workspaces/{ws}/rooms/{room}/state,
// the authoritative snapshot: producer, consumers, and the robotics
// joints map or video config/counters, depending on service.
func (s *Server) GetRoomState(c *gin.Context) {
	room, ok := s.lookupRoom(c)
	if !ok {
		return
	}

	state := gin.H{
		"workspace_id": room.WorkspaceID,
		"room_id":      room.RoomID,
		"producer_id":  room.ProducerID(),
		"consumers":    room.Consumers(),
	}
	if s.Service == "robotics" {
		state["joints"] = room.JointsSnapshot()
	} else {
		cfg := room.GetVideoConfig()
		frames, bytes := room.Stats()
		state["config"] = cfg
		state["recovery_config"] = room.GetRecoveryConfig()
		state["frame_count"] = frames
		state["total_bytes"] = bytes
	}
	c.JSON(http.StatusOK, state)
}

// DeleteRoom handles DELETE /{service}/workspaces/{ws}/rooms/{room}. It
// evicts every live connection first, then removes the room.
func (s *Server) DeleteRoom(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	roomID := c.Param("room_id")

	s.Router.EvictRoom(workspaceID, roomID)
	if err := s.Registry.DeleteRoom(workspaceID, roomID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
		return
	}
	metrics.ActiveRooms.WithLabelValues(s.Service).Dec()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type commandRequest struct {
	Joints []struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	} `json:"joints"`
}

// PostCommand handles the robotics-only POST .../command endpoint: an
// out-of-band command-injection surface reusing the same state-delta
// algorithm the joint_update handler uses.
func (s *Server) PostCommand(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	roomID := c.Param("room_id")

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed command body"})
		return
	}

	records := make([]roomstate.JointRecord, 0, len(req.Joints))
	for _, j := range req.Joints {
		records = append(records, roomstate.JointRecord{Name: j.Name, Value: j.Value})
	}

	changed, err := s.Router.ApplyOutOfBandCommand(workspaceID, roomID, records)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

type signalRequest struct {
	ClientID string            `json:"client_id"`
	Message  signaling.Message `json:"message"`
}

// PostSignal handles the video-only POST .../webrtc/signal endpoint,
// invoking the same signaling.Relay the WebSocket path uses.
func (s *Server) PostSignal(c *gin.Context) {
	workspaceID := c.Param("workspace_id")
	roomID := c.Param("room_id")

	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signal body"})
		return
	}

	if err := s.Relay.Forward(workspaceID, roomID, req.ClientID, req.Message); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) lookupRoom(c *gin.Context) (*roomstate.Room, bool) {
	workspaceID := c.Param("workspace_id")
	roomID := c.Param("room_id")

	room, err := s.Registry.GetRoom(workspaceID, roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}
	return room, true
}
