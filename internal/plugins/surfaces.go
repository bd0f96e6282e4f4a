package plugins

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// missionEnvelope exposes mission-context metadata alongside a decision;
// the core contract only guarantees the route exists when enabled, not its
// internal behavior.
type missionEnvelope struct{}

func NewMissionEnvelope() Surface { return missionEnvelope{} }
func (missionEnvelope) Name() string { return "mission_envelope" }
func (missionEnvelope) Mount(r chi.Router) {
	r.Get("/mission/envelope", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"surface": "mission_envelope", "status": "stub"})
	})
}

// ringRouter exposes the disruption-ring routing surface.
type ringRouter struct{}

func NewRingRouter() Surface { return ringRouter{} }
func (ringRouter) Name() string { return "ring_router" }
func (ringRouter) Mount(r chi.Router) {
	r.Get("/ring/route", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"surface": "ring_router", "status": "stub"})
	})
}

// roeEngine exposes an operator view into rules-of-engagement policy state,
// distinct from the always-on doctrine gate embedded in /defend.
type roeEngine struct{}

func NewROEEngine() Surface { return roeEngine{} }
func (roeEngine) Name() string { return "roe_engine" }
func (roeEngine) Mount(r chi.Router) {
	r.Get("/roe/policy", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"surface": "roe_engine", "status": "stub"})
	})
}

// forensics exposes a placeholder deep-inspection surface over persisted
// decisions.
type forensics struct{}

func NewForensics() Surface { return forensics{} }
func (forensics) Name() string { return "forensics" }
func (forensics) Mount(r chi.Router) {
	r.Get("/forensics/cases", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"surface": "forensics", "status": "stub"})
	})
}

// governance exposes a placeholder multi-tenant policy governance surface.
type governance struct{}

func NewGovernance() Surface { return governance{} }
func (governance) Name() string { return "governance" }
func (governance) Mount(r chi.Router) {
	r.Get("/governance/policies", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"surface": "governance", "status": "stub"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
