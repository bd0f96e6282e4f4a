package pipeline

import (
	"context"
	"fmt"
)

// Pipeline sequences the C3-C6 agents over a single request's State.
type Pipeline struct {
	agents []Agent
}

// New builds a pipeline that executes agents in the supplied order.
func New(agents ...Agent) *Pipeline {
	return &Pipeline{agents: agents}
}

// Run executes every agent in order, recording each Result on state.History.
// An agent error aborts remaining stages and is returned to the caller,
// which (per the defend handler) falls back to a minimal decision rather
// than failing the HTTP response.
func (p *Pipeline) Run(ctx context.Context, state *State) error {
	for _, agent := range p.agents {
		result, err := agent.Execute(ctx, state)
		if err != nil {
			state.Record(Result{Name: agent.Name(), Status: "error", Details: err.Error()})
			return fmt.Errorf("pipeline: %s: %w", agent.Name(), err)
		}
		state.Record(result)
	}
	return nil
}
