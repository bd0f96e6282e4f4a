package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the immutable snapshot produced once at startup by Loader.Load
// and threaded through constructors for the lifetime of the process. No
// package-level mutable flag ever stands in for these values; reload paths
// (rule bundle hot reload) only ever replace values inside the pipeline,
// never this struct.
type Config struct {
	Server ServerConfig

	// Rules holds any additional CEL-backed rule definitions loaded from
	// Server.Rules.RulesFile. The two MVP rules documented in the decision
	// spec are always compiled in by the rule engine regardless of this
	// slice's contents.
	Rules       []RuleDefinition
	RuleSources []string
}

// ServerConfig collects every FG_* resolved knob.
type ServerConfig struct {
	Listen    ListenConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	DB        DBConfig
	Clock     ClockConfig
	Rules     RulesConfig
	Features  FeatureFlags
	RateLimit RateLimitConfig
	Templates TemplatesConfig
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string
	Port    int
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string
	Format            string
	CorrelationHeader string
}

// AuthConfig captures the resolved identity for the auth boundary (C2).
type AuthConfig struct {
	// Enabled reflects the final auth_enabled resolution (§4.1 precedence).
	Enabled bool
	// APIKey is the resolved global API key. DevKeyFallback is true when no
	// FG_API_KEY was set and the literal dev-only default is in effect.
	APIKey         string
	DevKeyFallback bool
}

// DBConfig resolves the SQLite database path.
type DBConfig struct {
	Path string
	// AntiDriftTripped records that FG_ENV=test resolved a default path under
	// /var/lib and the loader refused to start (§4.1 anti-drift rule).
	AntiDriftTripped bool
	Env              string
}

// ClockConfig controls the clock-drift staleness threshold (C6).
type ClockConfig struct {
	StaleMS int64
}

// RulesConfig announces how the optional extra rule bundle is sourced.
type RulesConfig struct {
	RulesFile string
}

// TemplatesConfig announces where operators may drop files that override the
// built-in explanation-brief wording per rule, sandboxed to this directory so
// a misconfigured path can never make the renderer reach outside it.
type TemplatesConfig struct {
	BriefsDir string
}

// RateLimitConfig controls the C2 per-tenant-per-route limiter.
type RateLimitConfig struct {
	Backend           string // "memory" (default) or "redis"
	RequestsPerSecond float64
	Burst             int
	Redis             RedisConfig
}

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
}

// FeatureFlags gates the optional pluggable surfaces (§9 Design Notes).
type FeatureFlags struct {
	DevEventsEnabled bool
	MissionEnvelope  bool
	RingRouter       bool
	ROEEngine        bool
	Forensics        bool
	Governance       bool
}

// RuleDefinition is one additional rule loaded from an operator-supplied
// rules file. Condition is a CEL expression evaluated against the `event`
// variable; Score is added to the running total when Condition is true.
type RuleDefinition struct {
	Name       string          `koanf:"name"`
	Condition  string          `koanf:"condition"`
	Score      int             `koanf:"score"`
	Mitigation *RuleMitigation `koanf:"mitigation"`
}

// RuleMitigation mirrors MitigationAction for config-declared rules.
type RuleMitigation struct {
	Action     string  `koanf:"action"`
	Target     string  `koanf:"target"` // CEL expression evaluated against event, or literal
	Reason     string  `koanf:"reason"`
	Confidence float64 `koanf:"confidence"`
}

// Validate enforces invariants that keep the runtime predictable before
// serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Server.Clock.StaleMS < 0 {
		return fmt.Errorf("config: clock.staleMs invalid: %d", c.Server.Clock.StaleMS)
	}
	if c.Server.DB.AntiDriftTripped {
		return fmt.Errorf("config: refusing to start in FG_ENV=%s with default db path resolving under /var/lib (set FG_SQLITE_PATH explicitly)", c.Server.DB.Env)
	}
	backend := strings.TrimSpace(strings.ToLower(c.Server.RateLimit.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.RateLimit.Redis.Address) == "" {
			return errors.New("config: server.rateLimit.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: server.rateLimit.backend unsupported: %s", c.Server.RateLimit.Backend)
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("config: rules[%d].name required", i)
		}
		if strings.TrimSpace(rule.Condition) == "" {
			return fmt.Errorf("config: rules[%d].condition required", i)
		}
	}
	return nil
}
