// Package bus provides an optional, circuit-breaker-guarded Redis pub/sub
// channel used only to let a second process instance observe room
// activity for its own sweeper/metrics. It is never a read path for
// authoritative room state: joints and membership stay in-process, per
// the single-process model this system is built around.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightforge/relay/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// ActivityEvent is the envelope published when a room observes activity.
type ActivityEvent struct {
	WorkspaceID string `json:"workspace_id"`
	RoomID      string `json:"room_id"`
	Event       string `json:"event"`
	Timestamp   int64  `json:"timestamp"`
}

// Service wraps a Redis client with a circuit breaker so a degraded cache
// never blocks local message delivery.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewService connects to Redis and verifies connectivity immediately.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("connected to redis bus", "addr", addr)
	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// Publish announces room activity on the "relay:activity:{workspace}:{room}"
// channel. It never returns an error the caller must act on: a circuit-open
// or transient failure is logged and swallowed.
func (s *Service) Publish(ctx context.Context, workspaceID, roomID, event string, ts int64) {
	if s == nil || s.client == nil {
		return
	}

	_, err := s.cb.Execute(func() (any, error) {
		data, err := json.Marshal(ActivityEvent{
			WorkspaceID: workspaceID,
			RoomID:      roomID,
			Event:       event,
			Timestamp:   ts,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal activity event: %w", err)
		}
		channel := fmt.Sprintf("relay:activity:%s:%s", workspaceID, roomID)
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			slog.Warn("redis circuit open, dropping activity publish", "workspace_id", workspaceID, "room_id", roomID)
			return
		}
		slog.Error("redis publish failed", "workspace_id", workspaceID, "room_id", roomID, "error", err)
	}
}

// Ping verifies Redis connectivity; used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Close shuts down the underlying Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
