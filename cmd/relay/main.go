// Command relay runs the transport server: two independent services,
// robotics and video, sharing one HTTP listener, one Registry-per-service
// pair, and the ambient logging/metrics/health/rate-limit/bus stack, each
// mounted under its own URL prefix.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightforge/relay/internal/bus"
	"github.com/brightforge/relay/internal/config"
	"github.com/brightforge/relay/internal/connection"
	"github.com/brightforge/relay/internal/control"
	"github.com/brightforge/relay/internal/health"
	"github.com/brightforge/relay/internal/logging"
	"github.com/brightforge/relay/internal/middleware"
	"github.com/brightforge/relay/internal/ratelimit"
	"github.com/brightforge/relay/internal/registry"
	"github.com/brightforge/relay/internal/router"
	"github.com/brightforge/relay/internal/signaling"
	"github.com/brightforge/relay/internal/sweeper"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// serviceStack bundles everything one service ("robotics" or "video")
// needs: its own Registry/Table/Router/Sweeper, and (video only) its own
// signaling Relay.
type serviceStack struct {
	name     string
	registry *registry.Registry
	table    *connection.Table
	router   *router.Router
	relay    *signaling.Relay
	sweeper  *sweeper.Sweeper
	control  *control.Server
}

func newServiceStack(name string, cfg *config.Config, limiter *ratelimit.Limiter) *serviceStack {
	reg := registry.New()
	table := connection.NewTable()

	var relay *signaling.Relay
	if name == "video" {
		relay = signaling.New(reg, table)
	}

	rtr := router.New(name, reg, table, relay)
	sw := sweeper.New(name, reg, table, rtr,
		time.Duration(cfg.InactivityTimeout)*time.Second,
		time.Duration(cfg.SweepInterval)*time.Second)
	ctl := control.New(name, reg, table, rtr, relay, limiter, cfg.AllowedOrigins)

	return &serviceStack{name: name, registry: reg, table: table, router: rtr, relay: relay, sweeper: sw, control: ctl}
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		os.Exit(exitWithConfigError(err))
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		os.Exit(1)
	}

	var redisClient *redis.Client
	var busService *bus.Service
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Error(context.Background(), "failed to connect to redis bus", zap.Error(err))
			os.Exit(1)
		}
		defer busService.Close()
	}

	limiter, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		logging.Error(context.Background(), "failed to build rate limiter", zap.Error(err))
		os.Exit(1)
	}

	robotics := newServiceStack("robotics", cfg, limiter)
	video := newServiceStack("video", cfg, limiter)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go robotics.sweeper.Run(sweepCtx)
	go video.sweeper.Run(sweepCtx)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{cfg.AllowedOrigins}
	if cfg.AllowedOrigins == "" {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	engine.Use(cors.New(corsCfg))

	engine.Use(limiter.Global())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(busService)
	engine.GET("/health/live", healthHandler.Liveness)
	engine.GET("/health/ready", healthHandler.Readiness)

	robotics.control.RegisterRoutes(engine)
	video.control.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logging.Info(context.Background(), "relay starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(context.Background(), "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(context.Background(), "shutting down")

	cancelSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error(context.Background(), "forced shutdown", zap.Error(err))
	}
}

func exitWithConfigError(err error) int {
	logging.Error(context.Background(), "configuration invalid", zap.Error(err))
	return 1
}
