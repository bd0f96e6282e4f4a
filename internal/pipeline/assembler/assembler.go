// Package assembler implements C6: it builds the final Decision envelope
// from the state the rule engine and doctrine gate accumulated — event_id,
// clock_drift_ms, explain, and the deterministic explanation brief. Briefs
// render through the sandboxed template renderer; an operator may override
// any rule's built-in wording by dropping a same-named file under
// FG_BRIEF_TEMPLATES_DIR, sandboxed so that directory is the only filesystem
// surface the renderer can ever touch.
package assembler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frostgate/core/internal/pipeline"
	"github.com/frostgate/core/internal/templates"
)

// Agent implements pipeline.Agent for decision assembly.
type Agent struct {
	staleMS  int64
	renderer *templates.Renderer
	logger   *slog.Logger
	briefs   map[string]*templates.Template
}

// New constructs the assembler agent. staleMS is the clock-drift staleness
// threshold (FG_CLOCK_STALE_MS); ages beyond it are reported as zero drift.
// Explanation briefs are compiled once at construction time from
// briefTemplateSources so /defend never pays template parse cost per
// request; a brief that fails to compile falls back to the generic sentence
// and is logged. When briefsDir is non-empty, a file named after the rule
// (colons replaced with underscores, ".tmpl" suffix) overrides that rule's
// built-in source; a briefsDir that fails to open falls back to the
// built-in sources entirely, logged as a warning.
func New(staleMS int64, logger *slog.Logger, briefsDir string) *Agent {
	var sandbox *templates.Sandbox
	if briefsDir != "" {
		sb, err := templates.NewSandbox(briefsDir, false, nil)
		if err != nil {
			if logger != nil {
				logger.Warn("brief templates directory unavailable, using built-in wording",
					slog.String("dir", briefsDir), slog.String("error", err.Error()))
			}
		} else {
			sandbox = sb
		}
	}
	renderer := templates.NewRenderer(sandbox)

	briefs := make(map[string]*templates.Template, len(briefTemplateSources))
	for rule, source := range briefTemplateSources {
		tmpl, err := compileBrief(renderer, sandbox, rule, source)
		if err != nil {
			if logger != nil {
				logger.Warn("explanation brief template failed to compile, using generic fallback",
					slog.String("rule", rule), slog.String("error", err.Error()))
			}
			continue
		}
		briefs[rule] = tmpl
	}
	return &Agent{staleMS: staleMS, renderer: renderer, logger: logger, briefs: briefs}
}

// compileBrief prefers an operator-supplied override file for rule, under
// sandbox, and falls back to the built-in inline source when no sandbox is
// configured or the file does not exist.
func compileBrief(renderer *templates.Renderer, sandbox *templates.Sandbox, rule, source string) (*templates.Template, error) {
	if sandbox != nil {
		if tmpl, err := renderer.CompileFile(briefFileName(rule)); err == nil {
			return tmpl, nil
		}
	}
	return renderer.CompileInline(rule, source)
}

// briefFileName maps a rule identifier to the override filename an operator
// would place under FG_BRIEF_TEMPLATES_DIR, e.g. "rule:ssh_bruteforce" ->
// "rule_ssh_bruteforce.tmpl".
func briefFileName(rule string) string {
	sanitized := make([]byte, 0, len(rule)+6)
	for i := 0; i < len(rule); i++ {
		if rule[i] == ':' {
			sanitized = append(sanitized, '_')
			continue
		}
		sanitized = append(sanitized, rule[i])
	}
	return string(sanitized) + ".tmpl"
}

// Name identifies this agent.
func (a *Agent) Name() string { return "assembler" }

// Execute populates state.Decision from the accumulated pipeline state.
func (a *Agent) Execute(ctx context.Context, state *pipeline.State) (pipeline.Result, error) {
	eventID := pipeline.SHA256Hex(state.CanonicalJSON)

	ageMS := state.ServerNow.Sub(state.Event.Timestamp).Milliseconds()
	if ageMS < 0 {
		ageMS = -ageMS
	}
	drift := ageMS
	if ageMS > a.staleMS {
		drift = 0
	}

	brief := a.explanationBrief(state)

	decision := pipeline.Decision{
		EventID:        eventID,
		ThreatLevel:    state.ThreatLevel,
		Score:          state.Score,
		AnomalyScore:   state.AnomalyScore,
		RulesTriggered: state.RulesTriggered,
		Mitigations:    state.Mitigations,
		Explain: pipeline.Explain{
			Summary:        brief,
			RulesTriggered: state.RulesTriggered,
			AnomalyScore:   state.AnomalyScore,
			Score:          state.Score,
			TieD:           state.TieD,
		},
		TieD:              state.TieD,
		ROEApplied:        state.ROEApplied,
		AORequired:        state.AORequired,
		DisruptionLimited: state.DisruptionLimited,
		GatingDecision:    pickGating(state.GatingDecision),
		ClockDriftMS:      drift,
		ExplanationBrief:  brief,
	}

	state.Decision = decision

	return pipeline.Result{
		Name:   a.Name(),
		Status: "ok",
		Meta:   map[string]any{"event_id": eventID, "clock_drift_ms": drift},
	}, nil
}

func pickGating(g string) string {
	if g == "" {
		return pipeline.GatingAllow
	}
	return g
}

// explanationBrief builds the deterministic one-liner: a fixed sentence
// when nothing triggered, else the compiled template keyed by the primary
// (first) triggered rule, falling back to a generic suspicious-behavior
// sentence when no template was registered or it fails to render.
func (a *Agent) explanationBrief(state *pipeline.State) string {
	rules := state.RulesTriggered
	if len(rules) == 0 || rules[0] == "rule:default_allow" {
		return "No threat rules triggered for this event."
	}
	primary := rules[0]
	if tmpl, ok := a.briefs[primary]; ok {
		rendered, err := tmpl.Render(briefData{
			Rule:        primary,
			Score:       state.Score,
			ThreatLevel: state.ThreatLevel,
			SrcIP:       state.Event.SrcIP,
			FailedAuths: state.Event.FailedAuths,
		})
		if err == nil {
			return rendered
		}
		if a.logger != nil {
			a.logger.Warn("explanation brief render failed, using generic fallback",
				slog.String("rule", primary), slog.String("error", err.Error()))
		}
	}
	return fmt.Sprintf("Suspicious behavior matched rule '%s'.", primary)
}

// briefData is the template context available to explanation brief sources.
type briefData struct {
	Rule        string
	Score       int
	ThreatLevel string
	SrcIP       string
	FailedAuths int
}

// briefTemplateSources holds the raw (uncompiled) brief text per rule
// identifier, in the Go text/template + sprig dialect the rest of the
// operator-facing rendering stack uses.
var briefTemplateSources = map[string]string{
	"rule:ssh_bruteforce": "Repeated authentication failures ({{.FailedAuths}}) from {{.SrcIP}} triggered an SSH brute-force mitigation (score {{.Score}}, threat {{.ThreatLevel}}).",
}
