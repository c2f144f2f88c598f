// Package ratelimit enforces per-IP rate limits using Redis when
// available and falling back to an in-memory store otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/brightforge/relay/internal/config"
	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// Limiter holds the rate limiter instances for control-surface and
// WebSocket-connect traffic.
type Limiter struct {
	apiGlobal  *limiter.Limiter
	apiCommand *limiter.Limiter
	wsConnect  *limiter.Limiter
}

// New builds a Limiter backed by Redis when redisClient is non-nil,
// otherwise an in-memory store (single-instance / dev mode).
func New(cfg *config.Config, redisClient *redis.Client) (*Limiter, error) {
	globalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid global rate: %w", err)
	}
	commandRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPICommand)
	if err != nil {
		return nil, fmt.Errorf("invalid command rate: %w", err)
	}
	wsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsConnectIP)
	if err != nil {
		return nil, fmt.Errorf("invalid ws-connect rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "relay:ratelimit:"})
		if err != nil {
			return nil, fmt.Errorf("create redis rate-limit store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using in-memory store (redis disabled)")
	}

	return &Limiter{
		apiGlobal:  limiter.New(store, globalRate),
		apiCommand: limiter.New(store, commandRate),
		wsConnect:  limiter.New(store, wsRate),
	}, nil
}

// Global returns gin middleware enforcing the global per-IP control-surface
// limit.
func (l *Limiter) Global() gin.HandlerFunc {
	return l.middleware(l.apiGlobal, "global")
}

// Command returns gin middleware enforcing the tighter limit on the
// out-of-band command-injection endpoint.
func (l *Limiter) Command() gin.HandlerFunc {
	return l.middleware(l.apiCommand, "command")
}

func (l *Limiter) middleware(inst *limiter.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// The limiters share one store, so the endpoint prefix keeps each
		// limit's counter separate.
		key := endpoint + ":" + c.ClientIP()

		lctx, err := inst.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next() // fail open
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(endpoint, "ip").Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}

// CheckWebSocketConnect enforces the per-IP connect limit for WebSocket
// upgrades, which happen outside normal gin route middleware since the
// upgrade handler needs to reject before upgrading.
func (l *Limiter) CheckWebSocketConnect(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	lctx, err := l.wsConnect.Get(ctx, "ws_connect:"+ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed", zap.Error(err))
		return true // fail open
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("ws_connect", "ip").Inc()
		c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts from this address"})
		return false
	}
	return true
}
