package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"

	"github.com/frostgate/core/internal/config"
)

// redisLimiter implements a fixed-window counter over a shared valkey/redis
// store: INCR the per-key-per-window counter, set its expiry on first
// increment, and reject once the window's count exceeds burst. Distributed
// deployments trade the memory limiter's smooth refill for a store that
// multiple FrostGate processes can share.
type redisLimiter struct {
	client valkey.Client
	burst  int64
	window time.Duration
}

// NewRedis builds a valkey-backed limiter bounding burst requests per
// window (derived from requestsPerSecond).
func NewRedis(cfg config.RedisConfig, requestsPerSecond float64, burst int) (Limiter, error) {
	if cfg.Address == "" {
		return nil, errors.New("ratelimit: redis address required")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit: redis ping: %w", err)
	}

	window := time.Duration(float64(burst) / requestsPerSecond * float64(time.Second))
	if window <= 0 {
		window = time.Second
	}

	return &redisLimiter{client: client, burst: int64(burst), window: window}, nil
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	cmd := l.client.Do(ctx, l.client.B().Incr().Key(key).Build())
	count, err := cmd.ToInt64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		expireCmd := l.client.B().Pexpire().Key(key).Milliseconds(l.window.Milliseconds()).Build()
		if err := l.client.Do(ctx, expireCmd).Error(); err != nil {
			return false, fmt.Errorf("ratelimit: redis pexpire: %w", err)
		}
	}
	return count <= l.burst, nil
}

func (l *redisLimiter) Close(_ context.Context) error {
	l.client.Close()
	return nil
}
