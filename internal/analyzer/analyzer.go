// Package analyzer implements the failure analyzer (C8): given a
// failed step and its result, it matches failure handlers in the
// tool-on_failure -> method-family -> infra precedence order §4.8
// defines, computes each matched option's availability per §3.5, and
// returns a flattened, ranked remediation list.
package analyzer

import (
	"regexp"

	"github.com/tsukumogami/provisor/internal/choice"
	"github.com/tsukumogami/provisor/internal/data"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/resolver"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

// Availability mirrors choice.Gate's three-way taxonomy, named
// distinctly here because a remediation Option's readiness and a
// ChoiceOption's readiness are conceptually separate outputs even
// though they share the same gate evaluator.
type Availability string

const (
	Ready      Availability = "ready"
	Locked     Availability = "locked"
	Impossible Availability = "impossible"
)

// RankedOption is one remediation option annotated with its computed
// availability, ready for the orchestrator to present or auto-apply.
type RankedOption struct {
	recipe.Option
	FailureID      string
	HandlerLabel   string
	Availability   Availability
	DisabledReason string
	EnableHint     string
}

// Analyze implements §4.8's algorithm. toolRecipe is the recipe owning
// the failed step (its OnFailure handlers are consulted first); it may
// be nil for steps with no owning recipe (e.g. a bare packages step),
// in which case only method-family and infra handlers apply.
func Analyze(toolRecipe *recipe.Recipe, step resolver.Step, result stepexec.Result, sp profile.SystemProfile, dp profile.DeepProfile) []RankedOption {
	output := joinTails(result)

	var handlers []recipe.Handler
	if toolRecipe != nil {
		handlers = append(handlers, toolRecipe.OnFailure...)
	}
	if family := methodFamily(step); family != "" {
		handlers = append(handlers, data.MethodFamilyHandlers[family]...)
	}
	handlers = append(handlers, data.InfraHandlers...)

	var ready, locked, impossible []RankedOption
	for _, h := range handlers {
		re, err := regexp.Compile(h.Pattern)
		if err != nil || !re.MatchString(output) {
			continue
		}
		for _, opt := range h.Options {
			ranked := rankOption(h, opt, sp, dp)
			switch ranked.Availability {
			case Ready:
				ready = append(ready, ranked)
			case Locked:
				locked = append(locked, ranked)
			default:
				impossible = append(impossible, ranked)
			}
		}
	}

	out := make([]RankedOption, 0, len(ready)+len(locked)+len(impossible))
	out = append(out, ready...)
	out = append(out, locked...)
	out = append(out, impossible...)
	return out
}

func rankOption(h recipe.Handler, opt recipe.Option, sp profile.SystemProfile, dp profile.DeepProfile) RankedOption {
	gate, reason, hint := choice.EvaluateGate(opt.Gate, sp, dp)
	avail := Ready
	switch gate {
	case choice.GateLocked:
		avail = Locked
	case choice.GateImpossible:
		avail = Impossible
	}
	return RankedOption{
		Option:         opt,
		FailureID:      h.FailureID,
		HandlerLabel:   h.Label,
		Availability:   avail,
		DisabledReason: reason,
		EnableHint:     hint,
	}
}

// methodFamily recovers the method-family key a failed step ran under,
// from the metadata resolver.go attaches: "method" for tool steps,
// "family" for packages steps. Other step types (verify, post_install,
// repo_setup) have no method family, so only tool-on_failure and infra
// handlers apply to them.
func methodFamily(step resolver.Step) string {
	if step.Metadata == nil {
		return ""
	}
	if m, ok := step.Metadata["method"].(string); ok {
		return m
	}
	if f, ok := step.Metadata["family"].(string); ok {
		return f
	}
	return ""
}

func joinTails(result stepexec.Result) string {
	lines := make([]string, 0, len(result.StderrTail)+len(result.StdoutTail))
	lines = append(lines, result.StderrTail...)
	lines = append(lines, result.StdoutTail...)
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
