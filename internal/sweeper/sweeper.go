// Package sweeper implements the lifecycle sweeper: a background task
// that periodically scans every room and evicts those whose effective
// last activity predates the inactivity threshold.
package sweeper

import (
	"context"
	"time"

	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/metrics"
	"github.com/brightforge/relay/internal/registry"
	"go.uber.org/zap"
)

// Disconnector closes and detaches every participant in a room on
// eviction.
type Disconnector interface {
	EvictRoom(workspaceID, roomID string)
}

// Sweeper periodically evicts inactive rooms from a Registry.
type Sweeper struct {
	Service           string
	Registry          *registry.Registry
	Table             *connection.Table
	Disconnector      Disconnector
	InactivityTimeout time.Duration
	ScanInterval      time.Duration
}

// New constructs a Sweeper with the given timeout/interval. Defaults
// (1h timeout, 15m scan) are applied by the caller's config layer, not
// here, so tests can exercise arbitrary intervals.
func New(service string, reg *registry.Registry, table *connection.Table, disc Disconnector, inactivityTimeout, scanInterval time.Duration) *Sweeper {
	return &Sweeper{
		Service:           service,
		Registry:          reg,
		Table:             table,
		Disconnector:      disc,
		InactivityTimeout: inactivityTimeout,
		ScanInterval:      scanInterval,
	}
}

// Run blocks, scanning on ScanInterval, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep runs one scan pass at the given reference time, evicting every
// room whose effective last activity predates now-timeout. Exported so
// tests can drive it deterministically rather than waiting on a ticker.
func (s *Sweeper) Sweep(now time.Time) int {
	evicted := 0
	for _, room := range s.Registry.AllRooms() {
		effective := room.LastActivity()
		for _, entry := range s.Table.EntriesForRoom(room.WorkspaceID, room.RoomID) {
			if entry.LastActivity.After(effective) {
				effective = entry.LastActivity
			}
		}

		if now.Sub(effective) <= s.InactivityTimeout {
			continue
		}

		s.Disconnector.EvictRoom(room.WorkspaceID, room.RoomID)
		if err := s.Registry.DeleteRoom(room.WorkspaceID, room.RoomID); err != nil {
			continue
		}
		metrics.RoomsEvicted.WithLabelValues(s.Service).Inc()
		logging.Info(context.Background(), "evicted inactive room",
			zap.String("service", s.Service),
			zap.String("workspace_id", room.WorkspaceID),
			zap.String("room_id", room.RoomID))
		evicted++
	}
	return evicted
}
