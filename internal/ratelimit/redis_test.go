package ratelimit

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/frostgate/core/internal/config"
)

func newMiniredisLimiter(t *testing.T, rps float64, burst int) Limiter {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	l, err := NewRedis(config.RedisConfig{Address: server.Addr()}, rps, burst)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return l
}

func TestRedisLimiterAllowsUpToBurstWithinWindow(t *testing.T) {
	l := newMiniredisLimiter(t, 1, 2)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.False(t, ok, "third request exceeds the fixed window count of 2")
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	l := newMiniredisLimiter(t, 1, 1)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "tenant-b:defend")
	require.NoError(t, err)
	require.True(t, ok, "tenant-b has an independent counter key")
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{}, 1, 1)
	require.Error(t, err)
}

func TestFactorySelectsMemoryBackendByDefault(t *testing.T) {
	l, err := New(config.RateLimitConfig{})
	require.NoError(t, err)
	require.IsType(t, &memoryLimiter{}, l)
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	_, err := New(config.RateLimitConfig{Backend: "dynamodb"})
	require.Error(t, err)
}
