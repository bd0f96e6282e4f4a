package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Loader hydrates the runtime configuration while respecting the explicit,
// per-field precedence documented in the decision spec (§4.1): each field
// resolves itself rather than falling back to a single generic env > file >
// default chain, because FrostGate's environment surface is small and
// bespoke rather than a nested config tree.
type Loader struct {
	envPrefix string
	// AuthEnabledOverride lets embedders (tests, library callers) force the
	// auth_enabled resolution ahead of FG_AUTH_ENABLED and FG_API_KEY, per
	// the explicit-caller-argument precedence in §4.1.
	AuthEnabledOverride *bool
}

// NewLoader prepares a config hydrator. envPrefix is accepted for parity
// with the teacher's constructor signature but FrostGate's variables are
// always read under the fixed FG_ prefix; the parameter is reserved for
// future multi-tenant prefixing.
func NewLoader(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix}
}

// Load assembles the effective configuration snapshot.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	select {
	case <-ctx.Done():
		return Config{}, ctx.Err()
	default:
	}

	env := strings.TrimSpace(os.Getenv("FG_ENV"))

	cfg := Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: envOrDefault("FG_LISTEN_ADDRESS", "0.0.0.0"),
				Port:    envIntOrDefault("FG_LISTEN_PORT", 8080),
			},
			Logging: LoggingConfig{
				Level:             envOrDefault("FG_LOG_LEVEL", "info"),
				Format:            envOrDefault("FG_LOG_FORMAT", "json"),
				CorrelationHeader: envOrDefault("FG_CORRELATION_HEADER", "X-Request-ID"),
			},
			Clock: ClockConfig{
				StaleMS: envInt64OrDefault("FG_CLOCK_STALE_MS", 300000),
			},
			Rules: RulesConfig{
				RulesFile: strings.TrimSpace(os.Getenv("FG_RULES_FILE")),
			},
			Templates: TemplatesConfig{
				BriefsDir: strings.TrimSpace(os.Getenv("FG_BRIEF_TEMPLATES_DIR")),
			},
			Features: FeatureFlags{
				DevEventsEnabled: envBool("FG_DEV_EVENTS_ENABLED"),
				MissionEnvelope:  envBool("FG_MISSION_ENVELOPE_ENABLED"),
				RingRouter:       envBool("FG_RING_ROUTER_ENABLED"),
				ROEEngine:        envBool("FG_ROE_ENGINE_ENABLED"),
				Forensics:        envBool("FG_FORENSICS_ENABLED"),
				Governance:       envBool("FG_GOVERNANCE_ENABLED"),
			},
			RateLimit: RateLimitConfig{
				Backend:           envOrDefault("FG_RATE_LIMIT_BACKEND", "memory"),
				RequestsPerSecond: envFloatOrDefault("FG_RATE_LIMIT_RPS", 5),
				Burst:             envIntOrDefault("FG_RATE_LIMIT_BURST", 10),
				Redis: RedisConfig{
					Address:  os.Getenv("FG_RATE_LIMIT_REDIS_ADDRESS"),
					Username: os.Getenv("FG_RATE_LIMIT_REDIS_USERNAME"),
					Password: os.Getenv("FG_RATE_LIMIT_REDIS_PASSWORD"),
					DB:       envIntOrDefault("FG_RATE_LIMIT_REDIS_DB", 0),
				},
			},
		},
	}

	cfg.Server.Auth = resolveAuth(l.AuthEnabledOverride)
	dbCfg, err := resolveDBPath(env)
	if err != nil {
		return Config{}, err
	}
	cfg.Server.DB = dbCfg

	if cfg.Server.Rules.RulesFile != "" {
		rules, err := loadRuleBundle(cfg.Server.Rules.RulesFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Rules = rules
		cfg.RuleSources = []string{cfg.Server.Rules.RulesFile}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveAuth implements the auth_enabled precedence from §4.1: explicit
// caller argument > parsed FG_AUTH_ENABLED > FG_API_KEY non-empty. The
// api_key itself falls back to the literal dev-only default, logged as a
// warning by the caller (main) since Loader has no logger of its own.
func resolveAuth(override *bool) AuthConfig {
	apiKey := os.Getenv("FG_API_KEY")
	devFallback := false
	if strings.TrimSpace(apiKey) == "" {
		apiKey = "supersecret"
		devFallback = true
	}

	var enabled bool
	switch {
	case override != nil:
		enabled = *override
	case strings.TrimSpace(os.Getenv("FG_AUTH_ENABLED")) != "":
		enabled, _ = strconv.ParseBool(strings.TrimSpace(os.Getenv("FG_AUTH_ENABLED")))
	default:
		enabled = strings.TrimSpace(os.Getenv("FG_API_KEY")) != ""
	}

	return AuthConfig{Enabled: enabled, APIKey: apiKey, DevKeyFallback: devFallback}
}

// resolveDBPath implements the db_path precedence from §4.1, including the
// FG_ENV=test anti-drift guard: a non-prod resolution that would otherwise
// land under /var/lib/... is a fatal initialization error rather than a
// silently accepted path, so demo/test runs can never mutate production
// state by accident.
func resolveDBPath(env string) (DBConfig, error) {
	if explicit := strings.TrimSpace(os.Getenv("FG_SQLITE_PATH")); explicit != "" {
		return DBConfig{Path: explicit, Env: env}, nil
	}

	if env == "prod" {
		return DBConfig{Path: "/var/lib/frostgate/state/frostgate.db", Env: env}, nil
	}

	stateDir := strings.TrimSpace(os.Getenv("FG_STATE_DIR"))
	if stateDir == "" {
		repoRoot, err := os.Getwd()
		if err != nil {
			return DBConfig{}, fmt.Errorf("config: resolve working directory: %w", err)
		}
		stateDir = filepath.Join(repoRoot, "state")
	}
	path := filepath.Join(stateDir, "frostgate.db")

	if env == "test" && strings.HasPrefix(path, "/var/lib") {
		return DBConfig{Path: path, Env: env, AntiDriftTripped: true}, nil
	}
	return DBConfig{Path: path, Env: env}, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64OrDefault(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	parsed, _ := strconv.ParseBool(v)
	return parsed
}
