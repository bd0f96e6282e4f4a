package httpapi

import (
	"net/http"
	"time"

	"github.com/frostgate/core/internal/devseed"
	"github.com/frostgate/core/internal/store"
)

type devSeedDeps struct {
	store   *store.SQLiteStore
	enabled bool
}

// handleDevSeed implements POST /dev/seed and /dev/emit: inserts a
// deterministic set of records when FG_DEV_EVENTS_ENABLED=1, else 404 as if
// the route did not exist (§4.1 feature flag contract).
func (d *devSeedDeps) handleDevSeed(w http.ResponseWriter, r *http.Request) {
	if !d.enabled {
		http.NotFound(w, r)
		return
	}
	ids, err := devseed.Seed(r.Context(), d.store, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "seed failed")
		return
	}
	respond(w, http.StatusOK, map[string]any{"inserted_ids": ids})
}
