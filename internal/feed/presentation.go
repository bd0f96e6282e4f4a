// Package feed implements C8: the deterministic presentation engine that
// synthesizes UI-ready fields from raw DecisionRecord columns, plus the
// query filters consumed by /decisions, /feed/live, and /feed/stream.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/frostgate/core/internal/store"
	"github.com/frostgate/core/internal/templates"
)

// presentationRenderer compiles the title/summary templates once at package
// load, the same sandboxed renderer used for explanation briefs. Title and
// summary sources are fixed literals, so a compile failure here would be a
// programming error rather than an operator input problem; titleTmpl/
// summaryTmpl are left nil in that case and Present falls back to its
// Sprintf-built default.
var (
	presentationRenderer = templates.NewRenderer(nil)
	titleTmpl, _         = presentationRenderer.CompileInline("feed_title", "{{.EventType}} event from {{.Source}}")
	summaryTmpl, _       = presentationRenderer.CompileInline("feed_summary",
		"{{.EventType}} ({{.Source}}) scored {{.ScoreDisplay | int}}, threat level {{.ThreatLevel}}: {{.ActionTaken}}.")
)

type presentationData struct {
	EventType    string
	Source       string
	ThreatLevel  string
	ActionTaken  string
	ScoreDisplay float64
}

// THREAT_WEIGHT maps a threat level to its presentation weight (§4.8, exact).
var THREAT_WEIGHT = map[string]float64{
	"none":     5,
	"low":      25,
	"medium":   55,
	"high":     85,
	"critical": 95,
}

// Item is the presentation-layer view of one DecisionRecord: a pure,
// deterministic function of its columns. Two calls against the same record
// always yield an identical Item (§8 presentation engine purity).
type Item struct {
	ID             int64                `json:"id"`
	CreatedAt      string               `json:"timestamp"`
	TenantID       string               `json:"tenant_id"`
	Source         string               `json:"source"`
	EventID        string               `json:"event_id"`
	EventType      string               `json:"event_type"`
	ThreatLevel    string               `json:"threat_level"`
	Severity       string               `json:"severity"`
	ScoreDisplay   float64              `json:"score_display"`
	Confidence     float64              `json:"confidence"`
	ActionTaken    string               `json:"action_taken"`
	Title          string               `json:"title"`
	Summary        string               `json:"summary"`
	DecisionDiff   *store.DecisionDiff  `json:"decision_diff,omitempty"`
	RulesTriggered []string             `json:"rules_triggered"`
	Request        map[string]any       `json:"request_json,omitempty"`
	Response       map[string]any       `json:"response_json,omitempty"`
}

// Present computes the presentation-layer Item for a DecisionRecord.
// includeRaw controls whether request_json/response_json are elided.
func Present(rec store.DecisionRecord, includeRaw bool) Item {
	weight := THREAT_WEIGHT[strings.ToLower(rec.ThreatLevel)]
	scoreDisplay := clamp(maxOf(weight, rec.AnomalyScore*100, rec.AIAdversarialScore*100), 0, 100)
	confidence := clamp(0.5+scoreDisplay/200, 0, 1)

	actionTaken := actionTakenFor(scoreDisplay, rec.ThreatLevel, rec.AIAdversarialScore)
	severity := severityFor(rec.ThreatLevel)

	item := Item{
		ID:             rec.ID,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		TenantID:       rec.TenantID,
		Source:         rec.Source,
		EventID:        rec.EventID,
		EventType:      rec.EventType,
		ThreatLevel:    rec.ThreatLevel,
		Severity:       severity,
		ScoreDisplay:   scoreDisplay,
		Confidence:     confidence,
		ActionTaken:    actionTaken,
		Title:          titleFor(rec.EventType, rec.Source, actionTaken, rec.ThreatLevel, scoreDisplay),
		Summary:        summaryFor(rec.EventType, rec.Source, actionTaken, rec.ThreatLevel, scoreDisplay),
		DecisionDiff:   rec.DecisionDiff,
		RulesTriggered: rec.RulesTriggered,
	}
	if includeRaw {
		item.Request = rec.Request
		item.Response = rec.Response
	}
	return item
}

func actionTakenFor(scoreDisplay float64, threatLevel string, aiAdv float64) string {
	tl := strings.ToLower(threatLevel)
	switch {
	case scoreDisplay >= 85, (tl == "high" || tl == "critical") && aiAdv >= 0.6:
		return "quarantine"
	case scoreDisplay >= 65:
		return "challenge"
	default:
		return "log_only"
	}
}

func severityFor(threatLevel string) string {
	switch strings.ToLower(threatLevel) {
	case "", "none", "unknown":
		return "info"
	default:
		return strings.ToLower(threatLevel)
	}
}

func titleFor(eventType, source, actionTaken, threatLevel string, scoreDisplay float64) string {
	data := presentationData{
		EventType:    displayEventType(eventType),
		Source:       source,
		ThreatLevel:  threatLevel,
		ActionTaken:  actionTaken,
		ScoreDisplay: scoreDisplay,
	}
	if titleTmpl != nil {
		if rendered, err := titleTmpl.Render(data); err == nil {
			return rendered
		}
	}
	return fmt.Sprintf("%s event from %s", data.EventType, source)
}

func summaryFor(eventType, source, actionTaken, threatLevel string, scoreDisplay float64) string {
	data := presentationData{
		EventType:    displayEventType(eventType),
		Source:       source,
		ThreatLevel:  threatLevel,
		ActionTaken:  actionTaken,
		ScoreDisplay: scoreDisplay,
	}
	if summaryTmpl != nil {
		if rendered, err := summaryTmpl.Render(data); err == nil {
			return rendered
		}
	}
	return fmt.Sprintf("%s (%s) scored %.0f, threat level %s: %s.",
		data.EventType, source, scoreDisplay, threatLevel, actionTaken)
}

func displayEventType(eventType string) string {
	if eventType == "" {
		return "unknown"
	}
	return eventType
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxOf(values ...float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
