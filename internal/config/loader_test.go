package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearFrostgateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FG_ENV", "FG_LISTEN_ADDRESS", "FG_LISTEN_PORT", "FG_LOG_LEVEL", "FG_LOG_FORMAT",
		"FG_CORRELATION_HEADER", "FG_CLOCK_STALE_MS", "FG_RULES_FILE", "FG_API_KEY",
		"FG_AUTH_ENABLED", "FG_SQLITE_PATH", "FG_STATE_DIR", "FG_RATE_LIMIT_BACKEND",
		"FG_RATE_LIMIT_RPS", "FG_RATE_LIMIT_BURST", "FG_RATE_LIMIT_REDIS_ADDRESS",
		"FG_BRIEF_TEMPLATES_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaultsWithNoEnvironment(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Listen.Port)
	require.Equal(t, "info", cfg.Server.Logging.Level)
	require.Equal(t, int64(300000), cfg.Server.Clock.StaleMS)
	require.False(t, cfg.Server.Auth.Enabled, "no FG_API_KEY or FG_AUTH_ENABLED set")
	require.True(t, cfg.Server.Auth.DevKeyFallback)
}

func TestLoadAuthEnabledDefaultsFromAPIKeyPresence(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_API_KEY", "real-key")

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.True(t, cfg.Server.Auth.Enabled)
	require.Equal(t, "real-key", cfg.Server.Auth.APIKey)
	require.False(t, cfg.Server.Auth.DevKeyFallback)
}

func TestLoadAuthEnabledExplicitFlagOverridesAPIKeyPresence(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_API_KEY", "real-key")
	t.Setenv("FG_AUTH_ENABLED", "false")

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.False(t, cfg.Server.Auth.Enabled, "FG_AUTH_ENABLED takes precedence over API key presence")
}

func TestLoadAuthEnabledOverrideTakesPrecedenceOverEverything(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_AUTH_ENABLED", "false")

	override := true
	loader := NewLoader("FG")
	loader.AuthEnabledOverride = &override

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.True(t, cfg.Server.Auth.Enabled)
}

func TestLoadExplicitSQLitePathWins(t *testing.T) {
	clearFrostgateEnv(t)
	explicit := filepath.Join(t.TempDir(), "custom.db")
	t.Setenv("FG_SQLITE_PATH", explicit)

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, explicit, cfg.Server.DB.Path)
}

func TestLoadProdEnvResolvesFixedStatePath(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_ENV", "prod")

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/var/lib/frostgate/state/frostgate.db", cfg.Server.DB.Path)
}

func TestLoadTestEnvTripsAntiDriftGuardUnderVarLib(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_ENV", "test")
	t.Setenv("FG_STATE_DIR", "/var/lib/frostgate/state")

	_, err := NewLoader("FG").Load(context.Background())
	require.Error(t, err, "resolving a default db path under /var/lib in FG_ENV=test must refuse to start")
}

func TestLoadRejectsInvalidRateLimitBackend(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_RATE_LIMIT_BACKEND", "dynamodb")

	_, err := NewLoader("FG").Load(context.Background())
	require.Error(t, err)
}

func TestLoadRedisBackendRequiresAddress(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_RATE_LIMIT_BACKEND", "redis")

	_, err := NewLoader("FG").Load(context.Background())
	require.Error(t, err)
}

func TestLoadReadsBriefTemplatesDirOverride(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	dir := t.TempDir()
	t.Setenv("FG_BRIEF_TEMPLATES_DIR", dir)

	cfg, err := NewLoader("FG").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Server.Templates.BriefsDir)
}

func TestLoadRejectsInvalidListenPort(t *testing.T) {
	clearFrostgateEnv(t)
	t.Setenv("FG_STATE_DIR", t.TempDir())
	t.Setenv("FG_LISTEN_PORT", "70000")

	_, err := NewLoader("FG").Load(context.Background())
	require.Error(t, err)
}
