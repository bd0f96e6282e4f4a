package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{db: db, keyLock: make(map[string]*sync.Mutex)}, mock
}

func TestIdForEventIDReturnsRowIDOnMatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM decisions WHERE event_id = \?`).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.idForEventID(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdForEventIDPropagatesNoRowsError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM decisions WHERE event_id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.idForEventID(context.Background(), "missing")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestForKeyReturnsNilWhenNoPriorRowExists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, created_at, tenant_id, source, event_id, event_type`).
		WithArgs("tenant-1", "agent", "auth").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "tenant_id", "source", "event_id", "event_type", "threat_level", "score",
			"anomaly_score", "ai_adversarial_score", "pq_fallback", "rules_triggered_json",
			"decision_diff_json", "request_json", "response_json", "prev_hash", "chain_hash",
			"latency_ms", "explain_summary",
		}))

	rec, err := s.latestForKey(context.Background(), "tenant-1", "agent", "auth")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestForKeyPropagatesUnexpectedQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, created_at, tenant_id, source, event_id, event_type`).
		WithArgs("tenant-1", "agent", "auth").
		WillReturnError(errors.New("disk full"))

	_, err := s.latestForKey(context.Background(), "tenant-1", "agent", "auth")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
