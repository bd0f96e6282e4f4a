package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PersistenceOutcome captures the result of a C7 insert attempt.
type PersistenceOutcome string

const (
	PersistenceStored        PersistenceOutcome = "stored"
	PersistenceDuplicate     PersistenceOutcome = "duplicate"
	PersistenceError         PersistenceOutcome = "error"
	PersistenceDiffError     PersistenceOutcome = "diff_error"
	PersistenceChainDegraded PersistenceOutcome = "chain_degraded"
)

// Recorder publishes Prometheus metrics for decision pipeline activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	defendRequests *prometheus.CounterVec
	defendLatency  *prometheus.HistogramVec

	authOutcomes *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec

	persistenceOps *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	defendRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frostgate",
		Subsystem: "defend",
		Name:      "requests_total",
		Help:      "Total /defend requests processed by the decision pipeline.",
	}, []string{"threat_level", "gating_decision", "status_code"})

	defendLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "frostgate",
		Subsystem: "defend",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed /defend requests.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"threat_level"})

	authOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frostgate",
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Auth boundary decisions by kind (allow, missing, invalid, revoked, forbidden).",
	}, []string{"outcome", "route"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frostgate",
		Subsystem: "auth",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-tenant-per-route rate limiter.",
	}, []string{"tenant_id", "route"})

	persistenceOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frostgate",
		Subsystem: "persistence",
		Name:      "operations_total",
		Help:      "Decision persistence operations executed by the audit layer.",
	}, []string{"outcome"})

	reg.MustRegister(defendRequests, defendLatency, authOutcomes, rateLimited, persistenceOps)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:       reg,
		handler:        handler,
		defendRequests: defendRequests,
		defendLatency:  defendLatency,
		authOutcomes:   authOutcomes,
		rateLimited:    rateLimited,
		persistenceOps: persistenceOps,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveDefend records the outcome and latency for a completed /defend request.
func (r *Recorder) ObserveDefend(threatLevel, gatingDecision string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	r.defendRequests.WithLabelValues(normalizeLabel(threatLevel), normalizeLabel(gatingDecision), statusLabel).Inc()
	r.defendLatency.WithLabelValues(normalizeLabel(threatLevel)).Observe(duration.Seconds())
}

// ObserveAuth records an auth boundary outcome for a route.
func (r *Recorder) ObserveAuth(outcome, route string) {
	if r == nil {
		return
	}
	r.authOutcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(route)).Inc()
}

// ObserveRateLimited records a rate-limit rejection for a tenant+route.
func (r *Recorder) ObserveRateLimited(tenantID, route string) {
	if r == nil {
		return
	}
	r.rateLimited.WithLabelValues(normalizeLabel(tenantID), normalizeLabel(route)).Inc()
}

// ObservePersistence records a C7 persistence operation outcome.
func (r *Recorder) ObservePersistence(outcome PersistenceOutcome) {
	if r == nil {
		return
	}
	r.persistenceOps.WithLabelValues(string(outcome)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
