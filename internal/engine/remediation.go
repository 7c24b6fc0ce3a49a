package engine

import (
	"context"
	"time"

	"github.com/tsukumogami/provisor/internal/analyzer"
	"github.com/tsukumogami/provisor/internal/planstate"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/resolver"
	"github.com/tsukumogami/provisor/internal/scheduler"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

// maxRemediationAttempts bounds how many times runStepWithRemediation
// will apply a remediation option and retry the same step, so a
// recipe/handler bug that never actually fixes anything can't spin
// forever.
const maxRemediationAttempts = 1

// runtime carries the per-run context runStepWithRemediation needs
// that doesn't belong on Engine itself (Engine is reused across runs;
// this is scoped to one plan execution).
type runtime struct {
	engine   *Engine
	plan     *resolver.Plan
	state    *planstate.State
	password stepexec.PasswordProvider
	choose   RemediationChooser

	sp profile.SystemProfile
	dp profile.DeepProfile
}

func (rt *runtime) exec() *stepexec.Executor {
	return rt.engine.Executor
}

// runStepWithRemediation runs step, and on failure consults the
// failure analyzer and applies a remediation option (if one is ready
// or the chooser picks a locked/manual one), retrying the step once
// remediation has run. Returns the last stepexec.Result observed and
// whether the step is to be treated as failed overall.
func (rt *runtime) runStepWithRemediation(ctx context.Context, step resolver.Step) (*stepexec.Result, bool) {
	result := rt.runOnce(ctx, step)
	if result.Status == stepexec.StatusSucceeded {
		return result, false
	}

	toolRecipe := rt.ownerRecipe(step)
	for attempt := 0; attempt < maxRemediationAttempts; attempt++ {
		options := analyzer.Analyze(toolRecipe, step, *result, rt.sp, rt.dp)
		opt, apply := rt.selectRemediation(step, options)
		if !apply {
			break
		}
		if !rt.applyRemediation(ctx, step, opt) {
			break
		}
		result = rt.runOnce(ctx, step)
		if result.Status == stepexec.StatusSucceeded {
			return result, false
		}
	}
	return result, true
}

func (rt *runtime) runOnce(ctx context.Context, step resolver.Step) *stepexec.Result {
	res, err := rt.exec().Run(ctx, step)
	if err != nil {
		res = stepexec.Result{Status: stepexec.StatusFailed, Error: err}
	}
	return &res
}

// selectRemediation picks the option to apply: automatically, the
// first ready option if AutoApplyReady is set; otherwise, whatever the
// RemediationChooser decides (which may itself auto-accept ready
// options, escalate manual ones to a human, or decline entirely).
func (rt *runtime) selectRemediation(step resolver.Step, options []analyzer.RankedOption) (*analyzer.RankedOption, bool) {
	if len(options) == 0 {
		return nil, false
	}
	if rt.engine.AutoApplyReady && options[0].Availability == analyzer.Ready && options[0].Strategy != recipe.StrategyManual {
		opt := options[0]
		return &opt, true
	}
	if rt.choose == nil {
		return nil, false
	}
	return rt.choose(step, options)
}

// ownerRecipe resolves the recipe owning a step, for tool on_failure
// matching. Only "tool" steps carry a tool_id in metadata; other step
// types (packages, verify, post_install, repo_setup) fall back to the
// plan's own root recipe, since those always belong to the tool the
// plan was resolved for.
func (rt *runtime) ownerRecipe(step resolver.Step) *recipe.Recipe {
	toolID := rt.plan.ToolID
	if id, ok := step.Metadata["tool_id"].(string); ok && id != "" {
		toolID = id
	}
	r, err := rt.engine.Recipes.Get(toolID)
	if err != nil {
		return nil
	}
	return r
}

// applyRemediation executes a remediation option's side effect (per
// §4.8's strategy table) ahead of the retry. Returns false if the
// remediation itself could not be carried out, in which case the step
// stays failed.
func (rt *runtime) applyRemediation(ctx context.Context, step resolver.Step, opt *analyzer.RankedOption) bool {
	switch opt.Strategy {
	case recipe.StrategyRetryWithModifier:
		return true // the retry itself reruns step.Command; Args/Env are advisory to a human reading the option

	case recipe.StrategyInstallPackages:
		return rt.runAux(ctx, synthesizePackagesStep(rt.sp.DistroFamily, opt.Packages))

	case recipe.StrategyEnvFix, recipe.StrategyCleanupRetry:
		for _, cmd := range opt.Commands {
			if !rt.runAux(ctx, resolver.Step{Type: "post_install", Label: opt.Label, Command: []string{"bash", "-c", cmd}}) {
				return false
			}
		}
		return true

	case recipe.StrategyInstallDep:
		result, err := rt.engine.InstallTool(ctx, opt.Dep, nil, rt.password, rt.choose)
		return err == nil && result.OK

	case recipe.StrategySwitchMethod:
		toolID := rt.plan.ToolID
		if id, ok := step.Metadata["tool_id"].(string); ok && id != "" {
			toolID = id
		}
		newPlan, err := resolver.ResolveWithMethodOverride(rt.engine.Recipes, rt.plan.ToolID, rt.sp, rt.dp, rt.state.UserChoices, toolID, opt.Method)
		if err != nil {
			return false
		}
		for _, s := range newPlan.Steps {
			if s.Metadata != nil && s.Metadata["tool_id"] == toolID {
				return rt.runAux(ctx, s)
			}
		}
		return false

	case recipe.StrategyManual:
		// The chooser already gated this on explicit user
		// acknowledgement (selectRemediation only reaches here via a
		// human decision, never AutoApplyReady); nothing left to run
		// before the retry.
		return true

	default:
		return false
	}
}

func (rt *runtime) runAux(ctx context.Context, step resolver.Step) bool {
	res, err := rt.exec().Run(ctx, step)
	return err == nil && res.Status == stepexec.StatusSucceeded
}

func synthesizePackagesStep(family string, packages map[string][]string) resolver.Step {
	return resolver.Step{
		Type:      "packages",
		Label:     "install remediation packages",
		NeedsSudo: true,
		Metadata:  map[string]any{"family": family, "packages": packages[family]},
	}
}

// recordStepResult appends one step's outcome to the plan state and
// advances LastCompletedIndex when steps complete strictly in order
// (the DAG can finish them out of order under concurrency; the cursor
// only advances through a contiguous successful prefix, per §4.7's
// resume contract).
func (rt *runtime) recordStepResult(index int, step resolver.Step, result *stepexec.Result, status scheduler.StepStatus) {
	sr := planstate.StepResult{
		StepID:    step.ID,
		Status:    string(status),
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	}
	if result != nil {
		sr.ExitCode = result.ExitCode
		sr.StdoutTail = result.StdoutTail
		sr.StderrTail = result.StderrTail
		if result.Error != nil {
			sr.Error = result.Error.Error()
		}
	}
	rt.state.StepResults = append(rt.state.StepResults, sr)

	if result != nil && result.Status == stepexec.StatusSucceeded && index == rt.state.LastCompletedIndex+1 {
		rt.state.LastCompletedIndex = index
	}
}
