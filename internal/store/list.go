package store

import (
	"context"
	"fmt"
	"strings"
)

// ListFilter narrows a decisions listing. Zero values are "no filter".
type ListFilter struct {
	Limit       int
	SinceID     int64
	TenantID    string
	Source      string
	EventType   string
	ThreatLevel string
}

// List returns decisions newest-first (descending id), applying the
// supplied filters. Used by both /decisions (C8 list) and /feed/live.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]DecisionRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	if filter.SinceID > 0 {
		where = append(where, "id < ?")
		args = append(args, filter.SinceID)
	}
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.ThreatLevel != "" {
		where = append(where, "threat_level = ?")
		args = append(args, filter.ThreatLevel)
	}

	query := `SELECT id, created_at, tenant_id, source, event_id, event_type, threat_level, score,
		anomaly_score, ai_adversarial_score, pq_fallback, rules_triggered_json,
		decision_diff_json, request_json, response_json, prev_hash, chain_hash,
		latency_ms, explain_summary
		FROM decisions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DecisionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ByID loads a single decision row for GET /decisions/{id}.
func (s *SQLiteStore) ByID(ctx context.Context, id int64) (*DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, tenant_id, source, event_id, event_type, threat_level, score,
		anomaly_score, ai_adversarial_score, pq_fallback, rules_triggered_json,
		decision_diff_json, request_json, response_json, prev_hash, chain_hash,
		latency_ms, explain_summary
		FROM decisions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, ErrNotFound
	}
	return rec, nil
}
