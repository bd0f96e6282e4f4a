package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frostgate/core/internal/config"
	"github.com/frostgate/core/internal/metrics"
	"github.com/frostgate/core/internal/ratelimit"
	"github.com/frostgate/core/internal/store"
)

type authContextKey struct{}

// authIdentity is threaded through the request context once C2 passes.
type authIdentity struct {
	TenantID string
	Scopes   []string
	Global   bool
}

func authFromContext(ctx context.Context) authIdentity {
	id, _ := ctx.Value(authContextKey{}).(authIdentity)
	return id
}

// authDeps collects the auth boundary's collaborators.
type authDeps struct {
	cfg     config.AuthConfig
	store   *store.SQLiteStore
	limiter ratelimit.Limiter
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// requireAuth returns middleware enforcing the C2 algorithm for a route that
// needs the given scopes (rate-limited when rateLimitedRoute is non-empty).
func (d *authDeps) requireAuth(route string, requiredScopes []string, rateLimitedRoute string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := d.authenticate(r)
			if err != nil {
				d.metrics.ObserveAuth(authOutcome(err), route)
				status, detail := authErrorResponse(err)
				respondError(w, status, detail)
				return
			}

			if len(requiredScopes) > 0 && !identity.Global {
				for _, scope := range requiredScopes {
					if !hasScope(identity.Scopes, scope) {
						d.metrics.ObserveAuth("forbidden", route)
						respondError(w, http.StatusForbidden, "insufficient scope")
						return
					}
				}
			}

			if rateLimitedRoute != "" && d.limiter != nil {
				key := ratelimit.Key(identity.TenantID, rateLimitedRoute)
				allowed, err := d.limiter.Allow(r.Context(), key)
				if err != nil {
					if d.logger != nil {
						d.logger.Warn("rate limiter error, failing open", slog.String("error", err.Error()))
					}
				} else if !allowed {
					d.metrics.ObserveRateLimited(identity.TenantID, rateLimitedRoute)
					respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
					return
				}
			}

			d.metrics.ObserveAuth("allow", route)
			ctx := context.WithValue(r.Context(), authContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth failure kinds (§4.2).
var (
	errAuthMissing   = errors.New("auth missing")
	errAuthInvalid   = errors.New("auth invalid")
	errTenantRevoked = errors.New("tenant revoked")
)

func (d *authDeps) authenticate(r *http.Request) (authIdentity, error) {
	tenantHeader := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	if tenantHeader != "" {
		tenant, err := d.store.TenantByID(r.Context(), tenantHeader)
		if err != nil || !tenant.IsActive() {
			return authIdentity{}, errTenantRevoked
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" || apiKey != tenant.APIKey {
			return authIdentity{}, errAuthMissing
		}
		return authIdentity{TenantID: tenant.ID, Global: true}, nil
	}

	if !d.cfg.Enabled {
		return authIdentity{}, nil
	}

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		return authIdentity{}, errAuthMissing
	}
	if apiKey == d.cfg.APIKey {
		return authIdentity{Global: true}, nil
	}

	secret := scopedKeySecret(apiKey)
	if secret == "" {
		return authIdentity{}, errAuthInvalid
	}
	hash := sha256Hex(secret)
	rec, err := d.store.APIKeyByHash(r.Context(), hash)
	if err != nil || rec.Revoked() {
		return authIdentity{}, errAuthInvalid
	}
	return authIdentity{TenantID: rec.TenantID, Scopes: rec.Scopes}, nil
}

// scopedKeySecret extracts the secret segment of a <prefix>.<token>.<secret>
// formatted scoped key.
func scopedKeySecret(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func authOutcome(err error) string {
	switch {
	case errors.Is(err, errTenantRevoked):
		return "revoked"
	case errors.Is(err, errAuthMissing):
		return "missing"
	case errors.Is(err, errAuthInvalid):
		return "invalid"
	default:
		return "error"
	}
}

func authErrorResponse(err error) (int, string) {
	return http.StatusUnauthorized, "Invalid or missing API key"
}
