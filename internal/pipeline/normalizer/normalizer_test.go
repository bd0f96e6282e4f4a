package normalizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frostgate/core/internal/pipeline"
)

func TestNormalizeMirrorsPayloadAndEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("event populated, payload empty mirrors into payload", func(t *testing.T) {
		raw := map[string]any{
			"event": map[string]any{"event_type": "auth.bruteforce"},
		}
		event := Normalize(raw, now)
		require.Equal(t, "auth.bruteforce", event.EventType)
		require.Equal(t, raw["event"], event.Payload)
	})

	t.Run("payload populated, event empty mirrors into event", func(t *testing.T) {
		raw := map[string]any{
			"payload": map[string]any{"event_type": "auth"},
		}
		event := Normalize(raw, now)
		require.Equal(t, raw["payload"], event.Event)
	})

	t.Run("neither present defaults to empty maps", func(t *testing.T) {
		event := Normalize(map[string]any{}, now)
		require.NotNil(t, event.Payload)
		require.NotNil(t, event.Event)
		require.Empty(t, event.Payload)
		require.Empty(t, event.Event)
	})
}

func TestNormalizeEventTypeDefaultsToUnknown(t *testing.T) {
	event := Normalize(map[string]any{}, time.Now())
	require.Equal(t, "unknown", event.EventType)
}

func TestNormalizeSrcIPChecksAliasesAcrossRawAndPayload(t *testing.T) {
	raw := map[string]any{
		"payload": map[string]any{"source_ip_addr": "203.0.113.5"},
	}
	event := Normalize(raw, time.Now())
	require.Equal(t, "203.0.113.5", event.SrcIP)
}

func TestNormalizeFailedAuthsCoercesNumericAliases(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want int
	}{
		{"float64 from json decode", map[string]any{"failed_auths": float64(7)}, 7},
		{"string attempts", map[string]any{"attempts": "12"}, 12},
		{"fail_count alias", map[string]any{"fail_count": float64(3)}, 3},
		{"absent defaults to zero", map[string]any{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := Normalize(tc.raw, time.Now())
			require.Equal(t, tc.want, event.FailedAuths)
		})
	}
}

func TestNormalizeTimestampFallsBackToNowOnAnyFailure(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid RFC3339 parses", func(t *testing.T) {
		event := Normalize(map[string]any{"timestamp": "2026-01-02T03:04:05Z"}, now)
		require.True(t, event.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	})

	t.Run("missing falls back to now", func(t *testing.T) {
		event := Normalize(map[string]any{}, now)
		require.True(t, event.Timestamp.Equal(now.UTC()))
	})

	t.Run("garbage string falls back to now rather than erroring", func(t *testing.T) {
		event := Normalize(map[string]any{"timestamp": "not-a-time"}, now)
		require.True(t, event.Timestamp.Equal(now.UTC()))
	})
}

func TestAgentExecutePopulatesStateAndCanonicalJSON(t *testing.T) {
	agent := New()
	require.Equal(t, "normalizer", agent.Name())

	state := &pipeline.State{
		RequestBody: []byte(`{"source":"edge-1","event_type":"auth","failed_auths":6}`),
		ServerNow:   time.Now().UTC(),
	}
	result, err := agent.Execute(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Equal(t, "edge-1", state.Event.Source)
	require.NotEmpty(t, state.CanonicalJSON)
}

func TestAgentExecuteToleratesEmptyBody(t *testing.T) {
	agent := New()
	state := &pipeline.State{RequestBody: nil, ServerNow: time.Now().UTC()}
	_, err := agent.Execute(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "unknown", state.Event.EventType)
}
