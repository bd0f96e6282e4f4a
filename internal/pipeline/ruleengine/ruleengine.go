// Package ruleengine implements C4: a stateless, deterministic evaluator of
// the MVP rule set plus any operator-supplied CEL rules, producing a score,
// threat level, rules-triggered list, and mitigations.
package ruleengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/frostgate/core/internal/config"
	"github.com/frostgate/core/internal/expr"
	"github.com/frostgate/core/internal/pipeline"
)

// Rule identifiers for the MVP set.
const (
	RuleSSHBruteforce = "rule:ssh_bruteforce"
	RuleDefaultAllow  = "rule:default_allow"
)

// RULE_SCORES documents the MVP scoring convention that operator-supplied
// rules follow when picking their own Score values. Each Agent keeps its own
// copy (seeded from this base) so hot reloads never mutate shared state.
var RULE_SCORES = map[string]int{
	RuleSSHBruteforce: 80,
}

// Threat level thresholds (§4.4, exact).
const (
	thresholdHigh   = 80
	thresholdMedium = 50
	thresholdLow    = 20
)

// compiledRule is an operator-supplied rule with its CEL condition and
// optional mitigation target pre-compiled.
type compiledRule struct {
	def    config.RuleDefinition
	cond   expr.Program
	target expr.Program
}

// Agent implements pipeline.Agent for rule evaluation. It never fails the
// request: an eval fault is logged and treated as "rule did not fire",
// falling back toward rule:default_allow; a condition that fails to compile
// is rejected by New instead. Its compiled rule set can be
// swapped at runtime via Replace, guarded by mu so in-flight Executes never
// observe a half-updated bundle.
type Agent struct {
	logger *slog.Logger

	mu     sync.RWMutex
	env    *expr.Environment
	extra  []compiledRule
	scores map[string]int
}

// New constructs the rule engine agent, compiling any operator-supplied
// rules up front so /defend never pays CEL compilation cost per request.
func New(logger *slog.Logger, extraRules []config.RuleDefinition) (*Agent, error) {
	env, err := expr.NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ruleengine: %w", err)
	}
	extra, scores, err := compileRules(env, extraRules)
	if err != nil {
		return nil, err
	}
	return &Agent{logger: logger, env: env, extra: extra, scores: scores}, nil
}

func compileRules(env *expr.Environment, defs []config.RuleDefinition) ([]compiledRule, map[string]int, error) {
	scores := make(map[string]int, len(RULE_SCORES)+len(defs))
	for k, v := range RULE_SCORES {
		scores[k] = v
	}
	var out []compiledRule
	for _, def := range defs {
		cond, err := env.Compile(def.Condition)
		if err != nil {
			return nil, nil, fmt.Errorf("ruleengine: rule %q: %w", def.Name, err)
		}
		cr := compiledRule{def: def, cond: cond}
		if def.Mitigation != nil && def.Mitigation.Target != "" {
			target, err := env.CompileValue(def.Mitigation.Target)
			if err == nil {
				cr.target = target
			}
		}
		out = append(out, cr)
		if _, known := scores[def.Name]; !known {
			scores[def.Name] = def.Score
		}
	}
	return out, scores, nil
}

// Name identifies this agent.
func (a *Agent) Name() string { return "rule_engine" }

// Replace swaps in a freshly compiled rule bundle, used by the rules-file
// hot-reload watcher. Safe to call concurrently with Execute.
func (a *Agent) Replace(next *Agent) {
	next.mu.RLock()
	env, extra, scores := next.env, next.extra, next.scores
	next.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.env = env
	a.extra = extra
	a.scores = scores
}

// Execute evaluates the MVP rule set and any operator-supplied rules against
// state.Event, populating Score, RulesTriggered, Mitigations, ThreatLevel,
// and AnomalyScore.
func (a *Agent) Execute(ctx context.Context, state *pipeline.State) (pipeline.Result, error) {
	defer func() {
		if r := recover(); r != nil {
			// RuleEngineError: should not occur; fall back to a minimal
			// default_allow decision rather than fail the request.
			if a.logger != nil {
				a.logger.Error("rule engine panic, falling back to default_allow", slog.Any("recover", r))
			}
			state.RulesTriggered = []string{RuleDefaultAllow}
			state.Score = 0
			state.Mitigations = nil
			state.ThreatLevel = pipeline.ThreatNone
			state.AnomalyScore = baselineAnomalyScore
		}
	}()

	a.mu.RLock()
	extra, scores := a.extra, a.scores
	a.mu.RUnlock()

	event := state.Event
	var triggered []string
	var mitigations []MitigationLike

	if sshBruteforceFires(event) {
		triggered = append(triggered, RuleSSHBruteforce)
		mitigations = append(mitigations, MitigationLike{
			Action:     "block_ip",
			Target:     event.SrcIP,
			Reason:     "repeated authentication failures",
			Confidence: 0.9,
		})
	}

	vars := map[string]any{"event": eventVars(event), "now": event.Timestamp}
	for _, cr := range extra {
		fired, err := cr.cond.EvalBool(vars)
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("rule condition eval failed, treating as not fired",
					slog.String("rule", cr.def.Name), slog.String("error", err.Error()))
			}
			continue
		}
		if !fired {
			continue
		}
		triggered = append(triggered, cr.def.Name)
		if cr.def.Mitigation != nil {
			target := cr.def.Mitigation.Target
			if cr.target.Source() != "" {
				if v, err := cr.target.Eval(vars); err == nil {
					if s, ok := v.(string); ok {
						target = s
					}
				}
			}
			mitigations = append(mitigations, MitigationLike{
				Action:     cr.def.Mitigation.Action,
				Target:     target,
				Reason:     cr.def.Mitigation.Reason,
				Confidence: cr.def.Mitigation.Confidence,
			})
		}
	}

	triggered = dedupePreserveOrder(triggered)
	if len(triggered) == 0 {
		triggered = []string{RuleDefaultAllow}
	}

	score := 0
	for _, rule := range triggered {
		score += scores[rule]
	}

	state.RulesTriggered = triggered
	state.Score = score
	state.Mitigations = toMitigations(mitigations)
	state.ThreatLevel = threatLevelFor(score)
	state.AnomalyScore = anomalyScoreFor(score, triggered)

	return pipeline.Result{
		Name:   a.Name(),
		Status: "ok",
		Meta:   map[string]any{"rules_triggered": triggered, "score": score},
	}, nil
}

// sshBruteforceFires implements rule:ssh_bruteforce's exact trigger
// condition: event_type in the recognized set, failed_auths >= 5, and
// src_ip present.
func sshBruteforceFires(event pipeline.CanonicalEvent) bool {
	switch event.EventType {
	case "auth", "auth.bruteforce", "auth_attempt":
	default:
		return false
	}
	return event.FailedAuths >= 5 && event.SrcIP != ""
}

const baselineAnomalyScore = 0.1

// anomalyScoreFor computes a monotonic, deterministic function of score and
// rule identities: baseline 0.1, brute-force adds >= 0.5, otherwise scales
// smoothly with score so higher-scoring operator rules still move the
// needle without ever exceeding 1.
func anomalyScoreFor(score int, triggered []string) float64 {
	v := baselineAnomalyScore
	for _, rule := range triggered {
		if rule == RuleSSHBruteforce {
			v += 0.5
		}
	}
	if bonus := float64(score) / 400.0; bonus > 0 {
		v += bonus
	}
	if v > 1 {
		v = 1
	}
	return v
}

func threatLevelFor(score int) string {
	switch {
	case score >= thresholdHigh:
		return pipeline.ThreatHigh
	case score >= thresholdMedium:
		return pipeline.ThreatMedium
	case score >= thresholdLow:
		return pipeline.ThreatLow
	default:
		return pipeline.ThreatNone
	}
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MitigationLike mirrors pipeline.MitigationAction so this package doesn't
// need to import-cycle back through the pipeline's own mitigation type
// construction helpers.
type MitigationLike struct {
	Action     string
	Target     string
	Reason     string
	Confidence float64
}

func toMitigations(in []MitigationLike) []pipeline.MitigationAction {
	out := make([]pipeline.MitigationAction, 0, len(in))
	for _, m := range in {
		out = append(out, pipeline.MitigationAction{
			Action:     m.Action,
			Target:     m.Target,
			Reason:     m.Reason,
			Confidence: m.Confidence,
		})
	}
	return out
}

func eventVars(event pipeline.CanonicalEvent) map[string]any {
	return map[string]any{
		"source":          event.Source,
		"tenant_id":       event.TenantID,
		"classification":  event.Classification,
		"persona":         event.Persona,
		"event_type":      event.EventType,
		"src_ip":          event.SrcIP,
		"failed_auths":    event.FailedAuths,
		"payload":         event.Payload,
	}
}
