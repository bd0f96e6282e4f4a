// Package normalizer implements C3: it converts the heterogeneous telemetry
// shapes clients actually send into a pipeline.CanonicalEvent, tolerating
// every legacy field alias rather than rejecting the request.
package normalizer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/frostgate/core/internal/pipeline"
)

// Agent implements pipeline.Agent for the normalization stage. It never
// fails: unparseable input degrades to defaults rather than raising an
// error, per the normalizer's soft-failure contract.
type Agent struct{}

// New constructs the normalizer agent.
func New() *Agent { return &Agent{} }

// Name identifies this agent in logs and execution history.
func (a *Agent) Name() string { return "normalizer" }

// Execute parses state.RequestBody into a CanonicalEvent and stores both the
// event and its canonical JSON projection (used downstream for event_id).
func (a *Agent) Execute(ctx context.Context, state *pipeline.State) (pipeline.Result, error) {
	var raw map[string]any
	if len(state.RequestBody) > 0 {
		_ = json.Unmarshal(state.RequestBody, &raw)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	event := Normalize(raw, state.ServerNow)
	state.Event = event

	canonical, err := pipeline.CanonicalJSON(raw)
	if err != nil {
		// Fall back to canonicalizing the structured event itself so
		// event_id remains deterministic even for bodies that don't
		// round-trip (e.g. NaN literals already rejected by the decoder).
		canonical, _ = pipeline.CanonicalJSON(event)
	}
	state.CanonicalJSON = canonical

	return pipeline.Result{Name: a.Name(), Status: "ok"}, nil
}

// Normalize applies the tolerant compatibility rules documented for C3 to a
// decoded JSON request body and returns the resulting CanonicalEvent.
func Normalize(raw map[string]any, now time.Time) pipeline.CanonicalEvent {
	payload := asMap(raw["payload"])
	event := asMap(raw["event"])

	switch {
	case len(payload) == 0 && len(event) > 0:
		payload = event
	case len(event) == 0 && len(payload) > 0:
		event = payload
	default:
		if payload == nil {
			payload = map[string]any{}
		}
		if event == nil {
			event = map[string]any{}
		}
	}

	eventType := firstString(raw["event_type"], payload["event_type"], event["event_type"])
	if eventType == "" {
		eventType = "unknown"
	}

	srcIP := firstString(raw["src_ip"], raw["source_ip"], raw["source_ip_addr"], raw["ip"], raw["remote_ip"],
		payload["src_ip"], payload["source_ip"], payload["source_ip_addr"], payload["ip"], payload["remote_ip"])

	failedAuths := firstInt(
		raw["failed_auths"], raw["fail_count"], raw["failures"], raw["attempts"], raw["failed_attempts"],
		payload["failed_auths"], payload["fail_count"], payload["failures"], payload["attempts"], payload["failed_attempts"],
	)

	ts := parseTimestamp(raw["timestamp"], now)

	return pipeline.CanonicalEvent{
		Source:         asString(raw["source"]),
		TenantID:       asString(raw["tenant_id"]),
		Timestamp:      ts,
		Classification: asString(raw["classification"]),
		Persona:        asString(raw["persona"]),
		EventType:      eventType,
		SrcIP:          srcIP,
		FailedAuths:    failedAuths,
		Payload:        payload,
		Event:          event,
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(candidates ...any) string {
	for _, c := range candidates {
		if s, ok := c.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(candidates ...any) int {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		switch v := c.(type) {
		case float64:
			return int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
		case int:
			return v
		case int64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// parseTimestamp accepts RFC3339 (including trailing Z) and never fails:
// absent or unparseable values fall back to now in UTC.
func parseTimestamp(v any, now time.Time) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return now.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return now.UTC()
}
