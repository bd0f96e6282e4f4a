package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/frostgate/core/internal/feed"
)

// handleFeedStream implements GET/HEAD /feed/stream (§4.8, §6). HEAD
// returns headers only; GET emits `event: items` / `data: <json>` frames on
// a polling cadence, tracking a rolling since_id, and terminates cleanly on
// client disconnect.
func (d *feedDeps) handleFeedStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Connection", "keep-alive")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	interval := parseInterval(r.URL.Query().Get("interval"))

	filter, err := feed.ParseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query filter")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 1000\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sinceID := filter.SinceID
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			listFilter := filter
			listFilter.SinceID = 0

			records, err := d.store.List(ctx, listFilter.ToListFilter())
			if err != nil {
				continue
			}

			items := make([]feed.Item, 0, len(records))
			for _, rec := range records {
				if sinceID > 0 && rec.ID <= sinceID {
					continue
				}
				items = append(items, feed.Present(rec, filter.IncludeRaw))
			}
			items = filter.Apply(items)
			if len(items) == 0 {
				continue
			}
			for _, item := range items {
				if item.ID > sinceID {
					sinceID = item.ID
				}
			}

			payload, err := json.Marshal(map[string]any{"items": items})
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: items\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// parseInterval clamps the polling cadence to >= 0.2s, default 1.0s.
func parseInterval(raw string) time.Duration {
	seconds := 1.0
	if raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			seconds = parsed
		}
	}
	if seconds < 0.2 {
		seconds = 0.2
	}
	return time.Duration(seconds * float64(time.Second))
}
