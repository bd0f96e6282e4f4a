// Package devseed implements C9: a deterministic synthetic event emitter
// used by tests and demos, gated by FG_DEV_EVENTS_ENABLED.
package devseed

import (
	"context"
	"fmt"
	"time"

	"github.com/frostgate/core/internal/store"
)

// Seed inserts a deterministic batch of dev_seed decisions satisfying the
// documented dataset invariants: all rows source=="dev_seed"; at least one
// noise row (info/low severity, log_only); at least one actionable row
// (high severity, presented with action_taken "quarantine"); every row has
// created_at; actionable rows carry a non-null decision_diff_json.
func Seed(ctx context.Context, s *store.SQLiteStore, now time.Time) ([]int64, error) {
	var ids []int64

	noise := store.DecisionRecord{
		CreatedAt:      now,
		Source:         "dev_seed",
		EventID:        fmt.Sprintf("dev-seed-noise-%d", now.UnixNano()),
		EventType:      "heartbeat",
		ThreatLevel:    "none",
		Score:          0,
		AnomalyScore:   0.1,
		RulesTriggered: []string{"rule:default_allow"},
		ExplainSummary: "No threat rules triggered for this event.",
	}
	id, err := s.Insert(ctx, noise)
	if err != nil {
		return nil, fmt.Errorf("devseed: insert noise row: %w", err)
	}
	ids = append(ids, id)

	// Insert a first actionable row so the second carries a prior snapshot
	// for its key, guaranteeing a non-null decision_diff_json.
	baseline := store.DecisionRecord{
		CreatedAt:      now.Add(-time.Minute),
		Source:         "dev_seed",
		EventID:        fmt.Sprintf("dev-seed-baseline-%d", now.UnixNano()),
		EventType:      "auth.bruteforce",
		ThreatLevel:    "medium",
		Score:          50,
		AnomalyScore:   0.5,
		RulesTriggered: []string{"rule:ssh_bruteforce"},
		ExplainSummary: "Repeated authentication failures triggered an SSH brute-force mitigation.",
	}
	if _, err := s.Insert(ctx, baseline); err != nil {
		return nil, fmt.Errorf("devseed: insert baseline row: %w", err)
	}

	actionable := store.DecisionRecord{
		CreatedAt:      now,
		Source:         "dev_seed",
		EventID:        fmt.Sprintf("dev-seed-actionable-%d", now.UnixNano()),
		EventType:      "auth.bruteforce",
		ThreatLevel:    "high",
		Score:          80,
		AnomalyScore:   0.6,
		RulesTriggered: []string{"rule:ssh_bruteforce"},
		ExplainSummary: "Repeated authentication failures triggered an SSH brute-force mitigation.",
	}
	id, err = s.Insert(ctx, actionable)
	if err != nil {
		return nil, fmt.Errorf("devseed: insert actionable row: %w", err)
	}
	ids = append(ids, id)

	return ids, nil
}
