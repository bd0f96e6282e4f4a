package plugins

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMountEnabledOnlyMountsFlaggedSurfaces(t *testing.T) {
	r := chi.NewRouter()
	MountEnabled(r,
		struct {
			Enabled bool
			Surface Surface
		}{Enabled: true, Surface: NewMissionEnvelope()},
		struct {
			Enabled bool
			Surface Surface
		}{Enabled: false, Surface: NewRingRouter()},
	)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mission/envelope", nil))
	require.Equal(t, http.StatusNotImplemented, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ring/route", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSurfacesReportNameAndMountTheirRoute(t *testing.T) {
	cases := []struct {
		surface Surface
		route   string
	}{
		{NewMissionEnvelope(), "/mission/envelope"},
		{NewRingRouter(), "/ring/route"},
		{NewROEEngine(), "/roe/policy"},
		{NewForensics(), "/forensics/cases"},
		{NewGovernance(), "/governance/policies"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.surface.Name(), func(t *testing.T) {
			r := chi.NewRouter()
			tc.surface.Mount(r)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.route, nil))
			require.Equal(t, http.StatusNotImplemented, rr.Code)
			require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			require.Contains(t, rr.Body.String(), tc.surface.Name())
		})
	}
}
