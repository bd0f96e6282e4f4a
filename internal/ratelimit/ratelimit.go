// Package ratelimit implements the C2 per-tenant-per-route token bucket.
// Limiter is an abstraction so an in-process bucket map can be swapped for a
// shared store without changing the auth boundary's call contract (§9).
package ratelimit

import (
	"context"
)

// Limiter enforces a token-bucket rate limit keyed by (tenant_id, route).
type Limiter interface {
	// Allow reports whether a request for key may proceed, consuming one
	// token if so.
	Allow(ctx context.Context, key string) (bool, error)
	Close(ctx context.Context) error
}

// Key builds the canonical rate-limit key for a tenant+route pair.
func Key(tenantID, route string) string {
	if tenantID == "" {
		tenantID = "anonymous"
	}
	return tenantID + ":" + route
}
