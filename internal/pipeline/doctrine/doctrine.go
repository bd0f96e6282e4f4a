// Package doctrine implements C5: the persona+classification policy gate
// that bounds disruptive mitigations and always produces a TieD impact
// tuple.
package doctrine

import (
	"context"
	"strings"

	"github.com/frostgate/core/internal/pipeline"
)

const (
	personaGuardian       = "guardian"
	classificationSecret  = "secret"
	baselineServiceImpact = 0.35
	baselineUserImpact    = 0.20
)

// Agent implements pipeline.Agent for the doctrine/ROE gate.
type Agent struct{}

// New constructs the doctrine agent.
func New() *Agent { return &Agent{} }

// Name identifies this agent.
func (a *Agent) Name() string { return "doctrine" }

// Execute applies persona+classification policy to the mitigations the rule
// engine produced, reducing disruption and computing the TieD impact tuple
// and gating decision.
func (a *Agent) Execute(ctx context.Context, state *pipeline.State) (pipeline.Result, error) {
	mitigations := state.Mitigations

	tieD := baselineImpact(mitigations)

	persona := strings.ToLower(strings.TrimSpace(state.Event.Persona))
	classification := strings.ToLower(strings.TrimSpace(state.Event.Classification))

	guardianSecret := persona == personaGuardian && classification == classificationSecret

	var (
		roeApplied        bool
		aoRequired        bool
		disruptionLimited bool
		gating            = pipeline.GatingAllow
	)

	if guardianSecret {
		roeApplied = true
		aoRequired = true

		limited, reduced := limitDisruption(mitigations)
		disruptionLimited = reduced
		mitigations = limited

		if anyDisruptive(mitigations) {
			gating = pipeline.GatingRequireApproval
		} else {
			gating = pipeline.GatingAllow
		}

		if reduced {
			// Disruption reduction must never increase impact.
			reducedTieD := baselineImpact(mitigations)
			if reducedTieD.ServiceImpact < tieD.ServiceImpact {
				tieD.ServiceImpact = reducedTieD.ServiceImpact
			}
			if reducedTieD.UserImpact < tieD.UserImpact {
				tieD.UserImpact = reducedTieD.UserImpact
			}
		}
	}

	state.Mitigations = mitigations
	state.TieD = tieD
	state.ROEApplied = roeApplied
	state.AORequired = aoRequired
	state.DisruptionLimited = disruptionLimited
	state.GatingDecision = gating

	return pipeline.Result{
		Name:   a.Name(),
		Status: "ok",
		Meta: map[string]any{
			"gating_decision": gating,
			"roe_applied":     roeApplied,
		},
	}, nil
}

// baselineImpact computes the impact tuple before any doctrine reduction:
// at least the floor values when a block_ip mitigation is present, else
// zero.
func baselineImpact(mitigations []pipeline.MitigationAction) pipeline.TieD {
	for _, m := range mitigations {
		if m.IsDisruptive() {
			return pipeline.TieD{ServiceImpact: baselineServiceImpact, UserImpact: baselineUserImpact}
		}
	}
	return pipeline.TieD{}
}

func anyDisruptive(mitigations []pipeline.MitigationAction) bool {
	for _, m := range mitigations {
		if m.IsDisruptive() {
			return true
		}
	}
	return false
}

// limitDisruption filters mitigations down to at most one block_ip action,
// reporting whether any filtering actually occurred.
func limitDisruption(mitigations []pipeline.MitigationAction) ([]pipeline.MitigationAction, bool) {
	out := make([]pipeline.MitigationAction, 0, len(mitigations))
	seenBlock := false
	limited := false
	for _, m := range mitigations {
		if m.IsDisruptive() {
			if seenBlock {
				limited = true
				continue
			}
			seenBlock = true
		}
		out = append(out, m)
	}
	return out, limited
}
