package httpapi

import (
	"net/http"
	"os"

	"github.com/frostgate/core/internal/config"
	"github.com/frostgate/core/internal/store"
)

type healthDeps struct {
	cfg   config.Config
	store *store.SQLiteStore
}

type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Env         string `json:"env"`
	AuthEnabled bool   `json:"auth_enabled"`
}

// handleHealth implements GET /health: mirrors C1's resolved identity.
func (d *healthDeps) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Service:     serviceName(),
		Env:         d.cfg.Server.DB.Env,
		AuthEnabled: d.cfg.Server.Auth.Enabled,
	})
}

// handleLive implements GET /health/live: 200 whenever the process is up.
func (d *healthDeps) handleLive(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady implements GET /health/ready: 200 iff the DB file exists and
// is queryable.
func (d *healthDeps) handleReady(w http.ResponseWriter, r *http.Request) {
	path := d.cfg.Server.DB.Path
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DB missing: "+path)
		return
	}
	if d.store == nil || d.store.DB().PingContext(r.Context()) != nil {
		respondError(w, http.StatusServiceUnavailable, "DB not queryable: "+path)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Service     string `json:"service"`
	Env         string `json:"env"`
	AuthEnabled bool   `json:"auth_enabled"`
	DBPath      string `json:"db_path"`
}

// handleStatus implements GET /status and /v1/status: auth-gated service
// metadata.
func (d *healthDeps) handleStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, statusResponse{
		Service:     serviceName(),
		Env:         d.cfg.Server.DB.Env,
		AuthEnabled: d.cfg.Server.Auth.Enabled,
		DBPath:      d.cfg.Server.DB.Path,
	})
}

func serviceName() string {
	if v := os.Getenv("FG_SERVICE"); v != "" {
		return v
	}
	return "frostgate"
}
