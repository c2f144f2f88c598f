// Package config validates process-wide environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated process-wide environment configuration, shared
// by both relay services (robotics and video).
type Config struct {
	// Port is required; BindAddr defaults to 0.0.0.0.
	BindAddr string
	Port     string

	// Optional, defaulted
	GoEnv             string
	LogLevel          string
	InactivityTimeout int // seconds
	SweepInterval     int // seconds
	ServeStaticUI     bool

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	RateLimitAPIGlobal   string
	RateLimitAPICommand  string
	RateLimitWsConnectIP string

	AllowedOrigins string
}

// ValidateEnv validates all required environment variables and returns a
// Config, or a single error joining every validation failure found.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.BindAddr = getEnvOrDefault("BIND_ADDR", "0.0.0.0")

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.ServeStaticUI = os.Getenv("SERVE_STATIC_UI") == "true"

	cfg.InactivityTimeout = getEnvIntOrDefault("INACTIVITY_TIMEOUT_SECONDS", 3600, &errs)
	cfg.SweepInterval = getEnvIntOrDefault("SWEEP_INTERVAL_SECONDS", 900, &errs)

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPICommand = getEnvOrDefault("RATE_LIMIT_API_COMMAND", "100-M")
	cfg.RateLimitWsConnectIP = getEnvOrDefault("RATE_LIMIT_WS_CONNECT_IP", "50-M")

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"inactivity_timeout_seconds", cfg.InactivityTimeout,
		"sweep_interval_seconds", cfg.SweepInterval,
		"redis_enabled", cfg.RedisEnabled,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive integer (got %q)", key, raw))
		return defaultValue
	}
	return v
}
