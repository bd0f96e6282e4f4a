package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates the requested tenant or API key row does not exist.
var ErrNotFound = errors.New("store: not found")

// Tenant mirrors the tenants table row consulted by the auth boundary (C2).
type Tenant struct {
	ID        string
	Name      string
	APIKey    string
	Status    string
	CreatedAt time.Time
}

// IsActive reports whether the tenant may authenticate.
func (t Tenant) IsActive() bool { return t.Status == "active" }

// APIKeyRecord mirrors the api_keys table row (§3).
type APIKeyRecord struct {
	ID        int64
	Name      string
	KeyHash   string
	Scopes    []string
	TenantID  string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the key has been revoked.
func (k APIKeyRecord) Revoked() bool { return k.RevokedAt != nil }

// HasScope reports whether the key carries the requested scope.
func (k APIKeyRecord) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TenantByID looks up a tenant by id for the C2 tenant-path auth check.
func (s *SQLiteStore) TenantByID(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, api_key, status, created_at FROM tenants WHERE id = ?`, id)
	var (
		tenantID  string
		name      string
		apiKey    string
		status    string
		createdAt sql.NullString
	)
	if err := row.Scan(&tenantID, &name, &apiKey, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		APIKey:    apiKey,
		Status:    status,
		CreatedAt: parseTime(createdAt.String),
	}, nil
}

// APIKeyByHash looks up a scoped API key by its sha256 hash.
func (s *SQLiteStore) APIKeyByHash(ctx context.Context, keyHash string) (*APIKeyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, key_hash, scopes_json, tenant_id, created_at, revoked_at
		FROM api_keys WHERE key_hash = ?`, keyHash)
	var (
		id         int64
		name       string
		hash       string
		scopesJSON sql.NullString
		tenantID   sql.NullString
		createdAt  sql.NullString
		revokedAt  sql.NullString
	)
	if err := row.Scan(&id, &name, &hash, &scopesJSON, &tenantID, &createdAt, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec := &APIKeyRecord{
		ID:        id,
		Name:      name,
		KeyHash:   hash,
		TenantID:  tenantID.String,
		CreatedAt: parseTime(createdAt.String),
	}
	if scopesJSON.Valid && scopesJSON.String != "" {
		_ = json.Unmarshal([]byte(scopesJSON.String), &rec.Scopes)
	}
	if revokedAt.Valid && revokedAt.String != "" {
		t := parseTime(revokedAt.String)
		rec.RevokedAt = &t
	}
	return rec, nil
}
