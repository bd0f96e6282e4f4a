package feed

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frostgate/core/internal/store"
)

func TestParseFilterAppliesDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/decisions", nil)
	f, err := ParseFilter(req)
	require.NoError(t, err)
	require.Equal(t, 100, f.Limit)
	require.Equal(t, int64(0), f.SinceID)
	require.True(t, f.IncludeRaw)
}

func TestParseFilterReadsQueryParameters(t *testing.T) {
	req := httptest.NewRequest("GET", "/decisions?limit=25&since_id=10&tenant_id=t1&source=edge-1&event_type=auth&threat_level=high&include_raw=false&severity=high&q=bruteforce&only_actionable=true&only_changed=true", nil)
	f, err := ParseFilter(req)
	require.NoError(t, err)
	require.Equal(t, 25, f.Limit)
	require.Equal(t, int64(10), f.SinceID)
	require.Equal(t, "t1", f.TenantID)
	require.Equal(t, "edge-1", f.Source)
	require.Equal(t, "auth", f.EventType)
	require.Equal(t, "high", f.ThreatLevel)
	require.False(t, f.IncludeRaw)
	require.Equal(t, "bruteforce", f.Query)
	require.True(t, f.OnlyActionable)
	require.True(t, f.OnlyChanged)
}

func TestParseFilterRejectsOutOfRangeLimit(t *testing.T) {
	req := httptest.NewRequest("GET", "/decisions?limit=5000", nil)
	_, err := ParseFilter(req)
	require.Error(t, err)
}

func TestToListFilterPrefersExplicitThreatLevelOverSeverity(t *testing.T) {
	f := Filter{ThreatLevel: "high", Severity: "low"}
	require.Equal(t, "high", f.ToListFilter().ThreatLevel)
}

func TestToListFilterFallsBackToSeverityWhenThreatLevelEmpty(t *testing.T) {
	f := Filter{Severity: "medium"}
	require.Equal(t, "medium", f.ToListFilter().ThreatLevel)
}

func TestToListFilterTreatsInfoSeverityAsNoThreatLevelFilter(t *testing.T) {
	f := Filter{Severity: "info"}
	require.Equal(t, "", f.ToListFilter().ThreatLevel)
}

func TestApplyFiltersBySeverityInfo(t *testing.T) {
	items := []Item{{Severity: "info"}, {Severity: "high"}}
	out := Filter{Severity: "info"}.Apply(items)
	require.Len(t, out, 1)
	require.Equal(t, "info", out[0].Severity)
}

func TestApplyFiltersBySubstringQueryAcrossFields(t *testing.T) {
	items := []Item{
		{Source: "edge-1", EventType: "auth.bruteforce"},
		{Source: "edge-2", EventType: "web"},
	}
	out := Filter{Query: "bruteforce"}.Apply(items)
	require.Len(t, out, 1)
	require.Equal(t, "edge-1", out[0].Source)
}

func TestApplyOnlyActionableExcludesLowSeverityLogOnly(t *testing.T) {
	items := []Item{
		{Severity: "low", ActionTaken: "log_only"},
		{Severity: "high", ActionTaken: "quarantine"},
	}
	out := Filter{OnlyActionable: true}.Apply(items)
	require.Len(t, out, 1)
	require.Equal(t, "quarantine", out[0].ActionTaken)
}

func TestApplyOnlyChangedExcludesNoChangeDiffs(t *testing.T) {
	items := []Item{
		{DecisionDiff: nil},
		{DecisionDiff: &store.DecisionDiff{NoChange: true}},
		{DecisionDiff: &store.DecisionDiff{Score: &store.DeltaInt{From: 1, To: 2, Delta: 1}}},
	}
	out := Filter{OnlyChanged: true}.Apply(items)
	require.Len(t, out, 1)
}
