package ratelimit

import (
	"fmt"
	"strings"

	"github.com/frostgate/core/internal/config"
)

// New builds the configured Limiter backend.
func New(cfg config.RateLimitConfig) (Limiter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemory(cfg.RequestsPerSecond, cfg.Burst), nil
	case "redis":
		return NewRedis(cfg.Redis, cfg.RequestsPerSecond, cfg.Burst)
	default:
		return nil, fmt.Errorf("ratelimit: unsupported backend %q", cfg.Backend)
	}
}
