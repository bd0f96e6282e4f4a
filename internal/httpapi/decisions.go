package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/frostgate/core/internal/feed"
	"github.com/frostgate/core/internal/store"
)

type feedDeps struct {
	store *store.SQLiteStore
}

// handleListDecisions implements GET /decisions: newest-first, paginated by
// descending id, with include_raw eliding request/response bodies.
func (d *feedDeps) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	filter, err := feed.ParseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query filter")
		return
	}

	records, err := d.store.List(r.Context(), filter.ToListFilter())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}

	items := make([]feed.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, feed.Present(rec, filter.IncludeRaw))
	}
	items = filter.Apply(items)

	respond(w, http.StatusOK, map[string]any{"items": items})
}

// handleGetDecision implements GET /decisions/{id}.
func (d *feedDeps) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid decision id")
		return
	}
	rec, err := d.store.ByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "decision not found")
		return
	}
	respond(w, http.StatusOK, feed.Present(*rec, true))
}

// handleFeedLive implements GET /feed/live: the same filters as /decisions
// plus severity alias, substring search, and actionable/changed toggles.
func (d *feedDeps) handleFeedLive(w http.ResponseWriter, r *http.Request) {
	filter, err := feed.ParseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query filter")
		return
	}

	records, err := d.store.List(r.Context(), filter.ToListFilter())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}

	items := make([]feed.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, feed.Present(rec, filter.IncludeRaw))
	}
	items = filter.Apply(items)

	respond(w, http.StatusOK, map[string]any{"items": items})
}
