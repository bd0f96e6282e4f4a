package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frostgate/core/internal/metrics"
	"github.com/frostgate/core/internal/pipeline"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the C7 persistence backend: a single SQLite database file
// holding the decisions, api_keys, and tenants tables.
type SQLiteStore struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Recorder

	// keyMu serializes the load-prior/compute-chain/insert sequence per
	// (tenant_id, source, event_type) key so concurrent inserts for the same
	// key observe a consistent prev snapshot (§5 ordering guarantees).
	keyMu   sync.Mutex
	keyLock map[string]*sync.Mutex
}

// Open opens (creating if absent) the SQLite database at path and runs the
// idempotent schema migration.
func Open(path string, logger *slog.Logger, rec *metrics.Recorder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(8)

	s := &SQLiteStore{db: db, logger: logger, metrics: rec, keyLock: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying *sql.DB for health checks (C10).
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL DEFAULT '',
			threat_level TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			anomaly_score REAL NOT NULL DEFAULT 0,
			ai_adversarial_score REAL NOT NULL DEFAULT 0,
			pq_fallback INTEGER NOT NULL DEFAULT 0,
			rules_triggered_json JSON,
			decision_diff_json JSON,
			request_json JSON,
			response_json JSON,
			prev_hash TEXT NOT NULL DEFAULT '',
			chain_hash TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			explain_summary TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_event_id ON decisions(event_id);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_key ON decisions(tenant_id, source, event_type, id DESC);`,
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			key_hash TEXT NOT NULL,
			scopes_json JSON,
			tenant_id TEXT,
			created_at DATETIME,
			revoked_at DATETIME
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) lockFor(key string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	m, ok := s.keyLock[key]
	if !ok {
		m = &sync.Mutex{}
		s.keyLock[key] = m
	}
	return m
}

// Insert implements the C7 insert protocol: load prior, diff, chain, insert,
// tolerating duplicate event_id as a soft event. It never returns an error
// that should fail the HTTP response; callers log the returned error and
// continue.
func (s *SQLiteStore) Insert(ctx context.Context, rec DecisionRecord) (id int64, err error) {
	key := rec.TenantID + "\x00" + rec.Source + "\x00" + rec.EventType
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	prev, err := s.latestForKey(ctx, rec.TenantID, rec.Source, rec.EventType)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("store: load prior record failed, continuing without diff", slog.String("error", err.Error()))
		}
		if s.metrics != nil {
			s.metrics.ObservePersistence(metrics.PersistenceError)
		}
		prev = nil
	}

	rec.DecisionDiff = computeDiff(prev, rec)

	projection, err := canonicalProjection(rec)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("store: chain hash projection failed, inserting without chain", slog.String("error", err.Error()))
		}
		rec.PrevHash = ""
		rec.ChainHash = ""
	} else {
		prevHash := ""
		if prev != nil {
			prevHash = prev.ChainHash
		}
		rec.PrevHash = prevHash
		rec.ChainHash = pipeline.SHA256Hex(append([]byte(prevHash), projection...))
	}

	id, err = s.insertRow(ctx, rec)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.idForEventID(ctx, rec.EventID)
			if lookupErr == nil {
				if s.logger != nil {
					s.logger.Warn("store: duplicate event_id, returning existing row", slog.String("event_id", rec.EventID))
				}
				if s.metrics != nil {
					s.metrics.ObservePersistence(metrics.PersistenceDuplicate)
				}
				return existing, nil
			}
		}
		if s.metrics != nil {
			s.metrics.ObservePersistence(metrics.PersistenceError)
		}
		return 0, fmt.Errorf("store: insert: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObservePersistence(metrics.PersistenceStored)
	}
	return id, nil
}

func (s *SQLiteStore) insertRow(ctx context.Context, rec DecisionRecord) (int64, error) {
	rulesJSON, err := marshalJSON(rec.RulesTriggered)
	if err != nil {
		return 0, err
	}
	var diffJSON sql.NullString
	if rec.DecisionDiff != nil {
		s, err := marshalJSON(rec.DecisionDiff)
		if err == nil {
			diffJSON = sql.NullString{String: s, Valid: true}
		}
	}
	reqJSON, _ := marshalJSON(rec.Request)
	respJSON, _ := marshalJSON(rec.Response)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			created_at, tenant_id, source, event_id, event_type, threat_level, score,
			anomaly_score, ai_adversarial_score, pq_fallback, rules_triggered_json,
			decision_diff_json, request_json, response_json, prev_hash, chain_hash,
			latency_ms, explain_summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt.Format(time.RFC3339Nano), rec.TenantID, rec.Source, rec.EventID, rec.EventType, rec.ThreatLevel, rec.Score,
		rec.AnomalyScore, rec.AIAdversarialScore, boolToInt(rec.PQFallback), rulesJSON,
		diffJSON, reqJSON, respJSON, rec.PrevHash, rec.ChainHash,
		rec.LatencyMS, rec.ExplainSummary,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) idForEventID(ctx context.Context, eventID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM decisions WHERE event_id = ?`, eventID).Scan(&id)
	return id, err
}

func (s *SQLiteStore) latestForKey(ctx context.Context, tenantID, source, eventType string) (*DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, tenant_id, source, event_id, event_type, threat_level, score,
			anomaly_score, ai_adversarial_score, pq_fallback, rules_triggered_json,
			decision_diff_json, request_json, response_json, prev_hash, chain_hash,
			latency_ms, explain_summary
		FROM decisions
		WHERE tenant_id = ? AND source = ? AND event_type = ?
		ORDER BY id DESC LIMIT 1`, tenantID, source, eventType)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*DecisionRecord, error) {
	var (
		id                 int64
		createdAt          string
		tenantID           string
		source             string
		eventID            string
		eventType          string
		threatLevel        string
		score              int
		anomalyScore       float64
		aiAdversarialScore float64
		pqFallback         int
		rulesJSON          sql.NullString
		diffJSON           sql.NullString
		reqJSON            sql.NullString
		respJSON           sql.NullString
		prevHash           string
		chainHash          string
		latencyMS          int64
		explainSummary     string
	)
	if err := row.Scan(&id, &createdAt, &tenantID, &source, &eventID, &eventType, &threatLevel, &score,
		&anomalyScore, &aiAdversarialScore, &pqFallback, &rulesJSON, &diffJSON, &reqJSON, &respJSON,
		&prevHash, &chainHash, &latencyMS, &explainSummary); err != nil {
		return nil, err
	}

	rec := &DecisionRecord{
		ID:                 id,
		CreatedAt:          parseTime(createdAt),
		TenantID:           tenantID,
		Source:             source,
		EventID:            eventID,
		EventType:          eventType,
		ThreatLevel:        threatLevel,
		Score:              score,
		AnomalyScore:       anomalyScore,
		AIAdversarialScore: aiAdversarialScore,
		PQFallback:         pqFallback != 0,
		PrevHash:           prevHash,
		ChainHash:          chainHash,
		LatencyMS:          latencyMS,
		ExplainSummary:     explainSummary,
	}
	if rulesJSON.Valid && rulesJSON.String != "" {
		_ = json.Unmarshal([]byte(rulesJSON.String), &rec.RulesTriggered)
	}
	if diffJSON.Valid && diffJSON.String != "" {
		var diff DecisionDiff
		if err := json.Unmarshal([]byte(diffJSON.String), &diff); err == nil {
			rec.DecisionDiff = &diff
		}
	}
	if reqJSON.Valid && reqJSON.String != "" {
		_ = json.Unmarshal([]byte(reqJSON.String), &rec.Request)
	}
	if respJSON.Valid && respJSON.String != "" {
		_ = json.Unmarshal([]byte(respJSON.String), &rec.Response)
	}
	return rec, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}

// canonicalProjection hashes a stable projection of the row that excludes
// id, prev_hash, chain_hash, and created_at (§9 design notes).
func canonicalProjection(rec DecisionRecord) ([]byte, error) {
	projection := map[string]any{
		"tenant_id":            rec.TenantID,
		"source":               rec.Source,
		"event_id":             rec.EventID,
		"event_type":           rec.EventType,
		"threat_level":         rec.ThreatLevel,
		"score":                rec.Score,
		"anomaly_score":        rec.AnomalyScore,
		"ai_adversarial_score": rec.AIAdversarialScore,
		"pq_fallback":          rec.PQFallback,
		"rules_triggered":      rec.RulesTriggered,
		"decision_diff":        rec.DecisionDiff,
		"request":              rec.Request,
		"response":             rec.Response,
		"latency_ms":           rec.LatencyMS,
		"explain_summary":      rec.ExplainSummary,
	}
	return pipeline.CanonicalJSON(projection)
}

// computeDiff builds the decision_diff object for the new record against
// prev, or nil if prev is absent. Diff computation failures are logged by
// the caller and degrade to a nil diff; this function itself cannot fail.
func computeDiff(prev *DecisionRecord, next DecisionRecord) *DecisionDiff {
	if prev == nil {
		return nil
	}

	diff := &DecisionDiff{}
	changed := false

	if prev.ThreatLevel != next.ThreatLevel {
		diff.ThreatLevel = &DeltaString{From: prev.ThreatLevel, To: next.ThreatLevel}
		changed = true
	}

	if prev.Score != next.Score {
		diff.Score = &DeltaInt{From: prev.Score, To: next.Score, Delta: next.Score - prev.Score}
		changed = true
	}

	added, removed := diffRules(prev.RulesTriggered, next.RulesTriggered)
	if len(added) > 0 {
		diff.RulesAdded = added
		changed = true
	}
	if len(removed) > 0 {
		diff.RulesRemoved = removed
		changed = true
	}

	if !changed {
		diff.NoChange = true
	}
	return diff
}

func diffRules(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, r := range prev {
		prevSet[r] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, r := range next {
		nextSet[r] = struct{}{}
	}
	for _, r := range next {
		if _, ok := prevSet[r]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range prev {
		if _, ok := nextSet[r]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}
