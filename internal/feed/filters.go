package feed

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/frostgate/core/internal/store"
)

var validate = validator.New()

// Filter is the shared query filter shape for /decisions and /feed/live.
type Filter struct {
	Limit          int    `validate:"gte=0,lte=500"`
	SinceID        int64  `validate:"gte=0"`
	TenantID       string
	Source         string
	EventType      string
	ThreatLevel    string
	IncludeRaw     bool
	Severity       string
	Query          string
	OnlyActionable bool
	OnlyChanged    bool
}

// ParseFilter reads the documented query parameters off an HTTP request
// (§4.8) and validates bounds.
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Limit:          atoiOr(q.Get("limit"), 100),
		SinceID:        atoi64Or(q.Get("since_id"), 0),
		TenantID:       q.Get("tenant_id"),
		Source:         q.Get("source"),
		EventType:      q.Get("event_type"),
		ThreatLevel:    q.Get("threat_level"),
		IncludeRaw:     boolOr(q.Get("include_raw"), true),
		Severity:       q.Get("severity"),
		Query:          q.Get("q"),
		OnlyActionable: boolOr(q.Get("only_actionable"), false),
		OnlyChanged:    boolOr(q.Get("only_changed"), false),
	}
	if err := validate.Struct(f); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// ToListFilter projects the shared filter onto a store.ListFilter, resolving
// the severity alias into threat_level ("info" maps to the none/empty set,
// handled post-query since the DB stores a single threat_level value).
func (f Filter) ToListFilter() store.ListFilter {
	threatLevel := f.ThreatLevel
	if threatLevel == "" && f.Severity != "" && f.Severity != "info" {
		threatLevel = f.Severity
	}
	return store.ListFilter{
		Limit:       f.Limit,
		SinceID:     f.SinceID,
		TenantID:    f.TenantID,
		Source:      f.Source,
		EventType:   f.EventType,
		ThreatLevel: threatLevel,
	}
}

// Apply runs the feed-layer filters that require presentation-derived
// fields (severity alias "info", substring search, only_actionable,
// only_changed) against an already-queried, already-presented item slice.
func (f Filter) Apply(items []Item) []Item {
	out := items[:0:0]
	for _, item := range items {
		if f.Severity == "info" && item.Severity != "info" {
			continue
		}
		if f.Query != "" && !matchesQuery(item, f.Query) {
			continue
		}
		if f.OnlyActionable && item.ActionTaken == "log_only" && (item.Severity == "info" || item.Severity == "low") {
			continue
		}
		if f.OnlyChanged && !hasChanges(item.DecisionDiff) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesQuery(item Item, q string) bool {
	q = strings.ToLower(q)
	fields := []string{item.Source, item.EventType, item.ThreatLevel, item.Title, item.Summary, item.EventID}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func hasChanges(diff *store.DecisionDiff) bool {
	if diff == nil {
		return false
	}
	if diff.NoChange {
		return false
	}
	return diff.Score != nil || diff.ThreatLevel != nil || len(diff.RulesAdded) > 0 || len(diff.RulesRemoved) > 0
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atoi64Or(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func boolOr(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
