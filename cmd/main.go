package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frostgate/core/internal/config"
	"github.com/frostgate/core/internal/httpapi"
	"github.com/frostgate/core/internal/logging"
	"github.com/frostgate/core/internal/metrics"
	"github.com/frostgate/core/internal/pipeline"
	"github.com/frostgate/core/internal/pipeline/assembler"
	"github.com/frostgate/core/internal/pipeline/doctrine"
	"github.com/frostgate/core/internal/pipeline/normalizer"
	"github.com/frostgate/core/internal/pipeline/ruleengine"
	"github.com/frostgate/core/internal/ratelimit"
	"github.com/frostgate/core/internal/server"
	"github.com/frostgate/core/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader("FG")
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}
	if cfg.Server.Auth.DevKeyFallback {
		logger.Warn("FG_API_KEY not set, using dev-only default key")
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	decisionStore, err := store.Open(cfg.Server.DB.Path, logger, metricsRecorder)
	if err != nil {
		logger.Error("unable to open decision store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := decisionStore.Close(); err != nil {
			logger.Error("decision store close failed", slog.Any("error", err))
		}
	}()

	limiter, err := ratelimit.New(cfg.Server.RateLimit)
	if err != nil {
		logger.Error("unable to construct rate limiter", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := limiter.Close(context.Background()); err != nil {
			logger.Error("rate limiter close failed", slog.Any("error", err))
		}
	}()

	ruleAgent, err := ruleengine.New(logger.With(slog.String("agent", "rule_engine")), cfg.Rules)
	if err != nil {
		logger.Error("unable to compile rule bundle", slog.Any("error", err))
		os.Exit(1)
	}

	pipe := pipeline.New(
		normalizer.New(),
		ruleAgent,
		doctrine.New(),
		assembler.New(cfg.Server.Clock.StaleMS, logger.With(slog.String("agent", "assembler")), cfg.Server.Templates.BriefsDir),
	)

	var rulesWatcher *config.RulesWatcher
	if cfg.Server.Rules.RulesFile != "" {
		watcher, err := loader.WatchRules(ctx, cfg, func(rules []config.RuleDefinition) {
			next, err := ruleengine.New(logger.With(slog.String("agent", "rule_engine")), rules)
			if err != nil {
				logger.Error("rule bundle reload rejected", slog.Any("error", err))
				return
			}
			ruleAgent.Replace(next)
			logger.Info("rule bundle reloaded", slog.Int("rule_count", len(rules)))
		}, func(err error) {
			if err != nil {
				logger.Error("rules watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("rules watcher setup failed", slog.Any("error", err))
		} else {
			rulesWatcher = watcher
			defer rulesWatcher.Stop()
		}
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metricsRecorder,
		Store:    decisionStore,
		Pipeline: pipe,
		Limiter:  limiter,
	})

	srv, err := server.New(cfg, logger, handler)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
