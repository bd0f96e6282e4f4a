// Package httpapi assembles the chi-routed HTTP surface described in the
// decision service's external interface: health/status, /defend, the
// decisions/feed query surface, the gated dev seed endpoints, and the
// feature-flagged pluggable surfaces.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/frostgate/core/internal/config"
	"github.com/frostgate/core/internal/metrics"
	"github.com/frostgate/core/internal/pipeline"
	"github.com/frostgate/core/internal/plugins"
	"github.com/frostgate/core/internal/ratelimit"
	"github.com/frostgate/core/internal/store"
)

// Scopes referenced by the route table (§6).
const (
	scopeDefendWrite   = "defend:write"
	scopeDecisionsRead = "decisions:read"
	scopeFeedRead      = "feed:read"
)

// Deps bundles every collaborator the router needs to mount the full
// external interface.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Store    *store.SQLiteStore
	Pipeline *pipeline.Pipeline
	Limiter  ratelimit.Limiter
}

// NewRouter builds the complete chi.Mux for the decision service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(correlationID(deps.Config.Server.Logging.CorrelationHeader))
	r.Use(requestLogger(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Tenant-Id", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	auth := &authDeps{
		cfg:     deps.Config.Server.Auth,
		store:   deps.Store,
		limiter: deps.Limiter,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	health := &healthDeps{cfg: deps.Config, store: deps.Store}
	defend := &defendDeps{pipeline: deps.Pipeline, store: deps.Store, metrics: deps.Metrics, logger: deps.Logger}
	feedH := &feedDeps{store: deps.Store}
	devSeed := &devSeedDeps{store: deps.Store, enabled: deps.Config.Server.Features.DevEventsEnabled}

	r.Get("/health", health.handleHealth)
	r.Get("/health/live", health.handleLive)
	r.Get("/health/ready", health.handleReady)

	r.Handle("/metrics", deps.Metrics.Handler())

	statusAuth := auth.requireAuth("status", nil, "")
	r.With(statusAuth).Get("/status", health.handleStatus)
	r.With(statusAuth).Get("/v1/status", health.handleStatus)

	defendAuth := auth.requireAuth("defend", []string{scopeDefendWrite}, "defend")
	r.With(defendAuth).Post("/defend", defend.handleDefend)
	r.With(defendAuth).Post("/v1/defend", defend.handleDefend)

	decisionsAuth := auth.requireAuth("decisions", []string{scopeDecisionsRead}, "")
	r.With(decisionsAuth).Get("/decisions", feedH.handleListDecisions)
	r.With(decisionsAuth).Get("/decisions/{id}", feedH.handleGetDecision)

	feedAuth := auth.requireAuth("feed", []string{scopeFeedRead}, "")
	r.With(feedAuth).Get("/feed/live", feedH.handleFeedLive)
	r.With(feedAuth).Get("/feed/stream", feedH.handleFeedStream)
	r.With(feedAuth).Head("/feed/stream", feedH.handleFeedStream)

	devAuth := auth.requireAuth("dev", nil, "")
	r.With(devAuth).Post("/dev/seed", devSeed.handleDevSeed)
	r.With(devAuth).Post("/dev/emit", devSeed.handleDevSeed)

	mountPluggableSurfaces(r, deps.Config.Server.Features)

	return r
}

// mountPluggableSurfaces attaches each optional surface only when its
// feature flag is set, per the feature-flagged-surfaces design note.
func mountPluggableSurfaces(r chi.Router, flags config.FeatureFlags) {
	plugins.MountEnabled(r,
		struct {
			Enabled bool
			Surface plugins.Surface
		}{flags.MissionEnvelope, plugins.NewMissionEnvelope()},
		struct {
			Enabled bool
			Surface plugins.Surface
		}{flags.RingRouter, plugins.NewRingRouter()},
		struct {
			Enabled bool
			Surface plugins.Surface
		}{flags.ROEEngine, plugins.NewROEEngine()},
		struct {
			Enabled bool
			Surface plugins.Surface
		}{flags.Forensics, plugins.NewForensics()},
		struct {
			Enabled bool
			Surface plugins.Surface
		}{flags.Governance, plugins.NewGovernance()},
	)
}
