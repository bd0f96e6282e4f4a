package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frostgate/core/internal/metrics"
	"github.com/frostgate/core/internal/pipeline"
	"github.com/frostgate/core/internal/store"
)

type defendDeps struct {
	pipeline *pipeline.Pipeline
	store    *store.SQLiteStore
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// handleDefend implements POST /defend and /v1/defend: run C3-C6, persist
// via C7 best-effort, and return the Decision envelope. Persistence failures
// never fail this response (§7 propagation policy).
func (d *defendDeps) handleDefend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	state := &pipeline.State{RequestBody: body, ServerNow: time.Now().UTC()}
	if err := d.pipeline.Run(r.Context(), state); err != nil {
		if d.logger != nil {
			d.logger.Error("pipeline execution failed, falling back to minimal decision", slog.String("error", err.Error()))
		}
		state.Decision = minimalDecision(state)
	}

	decision := state.Decision
	identity := authFromContext(r.Context())

	if d.store != nil {
		rec := store.DecisionRecord{
			CreatedAt:      time.Now().UTC(),
			TenantID:       identity.TenantID,
			Source:         state.Event.Source,
			EventID:        decision.EventID,
			EventType:      state.Event.EventType,
			ThreatLevel:    decision.ThreatLevel,
			Score:          decision.Score,
			AnomalyScore:   decision.AnomalyScore,
			RulesTriggered: decision.RulesTriggered,
			Request:        requestAsMap(body),
			Response:       decisionAsMap(decision),
			LatencyMS:      time.Since(start).Milliseconds(),
			ExplainSummary: decision.ExplanationBrief,
		}
		if _, err := d.store.Insert(r.Context(), rec); err != nil && d.logger != nil {
			d.logger.Warn("persistence failed, decision still returned", slog.String("error", err.Error()))
		}
	}

	d.metrics.ObserveDefend(decision.ThreatLevel, decision.GatingDecision, http.StatusOK, time.Since(start))
	respond(w, http.StatusOK, decision)
}

func minimalDecision(state *pipeline.State) pipeline.Decision {
	return pipeline.Decision{
		EventID:          pipeline.SHA256Hex(state.CanonicalJSON),
		ThreatLevel:      pipeline.ThreatNone,
		RulesTriggered:   []string{"rule:default_allow"},
		GatingDecision:   pipeline.GatingAllow,
		ExplanationBrief: "No threat rules triggered for this event.",
		Explain: pipeline.Explain{
			Summary:        "No threat rules triggered for this event.",
			RulesTriggered: []string{"rule:default_allow"},
		},
	}
}

func requestAsMap(body []byte) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(body, &m)
	return m
}

func decisionAsMap(d pipeline.Decision) map[string]any {
	var m map[string]any
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	_ = json.Unmarshal(b, &m)
	return m
}
