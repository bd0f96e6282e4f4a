package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	l := NewMemory(1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "tenant-a:defend")
		require.NoError(t, err)
		require.True(t, ok, "request %d within burst should be allowed", i)
	}

	ok, err := l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.False(t, ok, "burst exhausted, next request should be rejected")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemory(1, 1)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.False(t, ok, "tenant-a bucket is exhausted")

	ok, err = l.Allow(ctx, "tenant-b:defend")
	require.NoError(t, err)
	require.True(t, ok, "tenant-b has its own independent bucket")
}

func TestMemoryLimiterDefaultsAppliedForNonPositiveConfig(t *testing.T) {
	l := NewMemory(0, 0)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "tenant-a:defend")
	require.NoError(t, err)
	require.True(t, ok, "defaulted burst must permit at least one request")
}

func TestMemoryLimiterCloseIsNoop(t *testing.T) {
	l := NewMemory(5, 5)
	require.NoError(t, l.Close(context.Background()))
}

func TestKeyDefaultsTenantToAnonymous(t *testing.T) {
	require.Equal(t, "anonymous:defend", Key("", "defend"))
	require.Equal(t, "tenant-1:defend", Key("tenant-1", "defend"))
}
