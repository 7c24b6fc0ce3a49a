// Package engine implements the orchestrator (C9): the public entry
// points a transport (CLI, HTTP surface) drives — install_tool,
// execute_plan, execute_plan_dag, resume_plan, list_pending_plans. It
// is the one component that wires every other component together;
// everything downstream of it (resolver, scheduler, stepexec,
// analyzer, planstate) stays ignorant of the others.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tsukumogami/provisor/internal/analyzer"
	"github.com/tsukumogami/provisor/internal/log"
	"github.com/tsukumogami/provisor/internal/planstate"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/resolver"
	"github.com/tsukumogami/provisor/internal/scheduler"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

// RemediationChooser lets the transport layer decide, for a step that
// failed and produced ranked remediation options, which option (if
// any) to apply. Returning (nil, false) means "no remediation",
// leaving the step failed and its dependents blocked.
type RemediationChooser func(step resolver.Step, options []analyzer.RankedOption) (*analyzer.RankedOption, bool)

// Engine is explicitly constructed per session (no global mutable
// state, per §9's design notes): every dependency a provisioning run
// needs is a field here, not a package-level var, so multiple Engines
// (e.g. in tests) never share state.
type Engine struct {
	Recipes  resolver.RecipeSource
	Executor *stepexec.Executor
	Store    *planstate.Store
	Logger   log.Logger

	// Workers is the DAG scheduler's worker budget; 0 picks §4.6's
	// default (min(4, CPU count)).
	Workers int

	// AutoApplyReady controls whether a "ready" remediation option is
	// applied automatically on failure or always escalated to the
	// RemediationChooser (open question #2 decision, see DESIGN.md);
	// false is the conservative default.
	AutoApplyReady bool

	// PlanTimeout is the per-plan hard deadline (§5's "default 2
	// hours, overridable"); zero means use the default.
	PlanTimeout time.Duration

	// deepCache holds the deep-tier profile for this Engine's session.
	deepCache profile.Cache
}

const defaultPlanTimeout = 2 * time.Hour

// PlanResult is the aggregate outcome install_tool/execute_plan/
// execute_plan_dag/resume_plan all return.
type PlanResult struct {
	OK        bool
	PlanID    string
	Steps     []StepOutcome
	ElapsedMS int64
}

// StepOutcome pairs one step with its terminal scheduler status and,
// if it ran, its stepexec result.
type StepOutcome struct {
	Step   resolver.Step
	Status scheduler.StepStatus
	Result *stepexec.Result
}

func (e *Engine) planTimeout() time.Duration {
	if e.PlanTimeout > 0 {
		return e.PlanTimeout
	}
	return defaultPlanTimeout
}

func (e *Engine) workers() int {
	return e.Workers
}

// detectProfiles runs the fast-tier system detection once per entry
// point call; the deep-tier profile is cached (§3.2) so repeated calls
// on the same Engine don't re-probe expensive checks like GPU driver
// version.
func (e *Engine) detectProfiles() (profile.SystemProfile, profile.DeepProfile, error) {
	sp, err := profile.Detect()
	if err != nil {
		return profile.SystemProfile{}, profile.DeepProfile{}, fmt.Errorf("engine: detect profile: %w", err)
	}
	return sp, e.deepCache.Get(), nil
}

// InstallTool is the convenience entry point: detect the profile,
// resolve a plan, execute it via the DAG scheduler, and persist +
// return the aggregate result.
func (e *Engine) InstallTool(ctx context.Context, toolID string, answers map[string]string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	sp, dp, err := e.detectProfiles()
	if err != nil {
		return nil, err
	}

	plan, err := resolver.ResolveWithChoices(e.Recipes, toolID, sp, dp, answers)
	if err != nil {
		return nil, err
	}
	if plan.AlreadyInstalled {
		return &PlanResult{OK: true, PlanID: "", Steps: nil}, nil
	}

	return e.ExecutePlanDAG(ctx, plan, answers, password, choose)
}

// ExecutePlan runs a plan's steps linearly, in declared order,
// ignoring any concurrency opportunity the DAG would otherwise expose.
// Used mainly for tests and for debugging a plan step by step.
func (e *Engine) ExecutePlan(ctx context.Context, plan *resolver.Plan, answers map[string]string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	sp, dp, err := e.detectProfiles()
	if err != nil {
		return nil, err
	}
	state := e.newState(plan, answers)
	return e.runLinear(ctx, state, plan, sp, dp, password, choose)
}

func (e *Engine) runLinear(ctx context.Context, state *planstate.State, plan *resolver.Plan, sp profile.SystemProfile, dp profile.DeepProfile, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	start := time.Now()
	rt := &runtime{engine: e, plan: plan, state: state, password: password, choose: choose, sp: sp, dp: dp}

	var outcomes []StepOutcome
	ok := true
	for i, step := range plan.Steps {
		result, failed := rt.runStepWithRemediation(ctx, step)
		status := scheduler.StepDone
		if failed {
			status = scheduler.StepFailed
			ok = false
		}
		outcomes = append(outcomes, StepOutcome{Step: step, Status: status, Result: result})
		rt.recordStepResult(i, step, result, status)
		e.observeStep(string(status))
		if failed {
			break
		}
	}

	state.Status = statusFor(ok, false)
	state.UpdatedAt = time.Now()
	if e.Store != nil {
		_ = e.Store.Save(state)
	}
	e.observePlanDuration(time.Since(start).Seconds())

	return &PlanResult{OK: ok, PlanID: state.PlanID, Steps: outcomes, ElapsedMS: time.Since(start).Milliseconds()}, nil
}

// ExecutePlanDAG runs a plan's steps under the DAG scheduler (C6),
// dispatching independent steps concurrently up to the worker budget.
func (e *Engine) ExecutePlanDAG(ctx context.Context, plan *resolver.Plan, answers map[string]string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	sp, dp, err := e.detectProfiles()
	if err != nil {
		return nil, err
	}
	state := e.newState(plan, answers)
	return e.runDAG(ctx, state, plan, sp, dp, password, choose)
}

func (e *Engine) runDAG(ctx context.Context, state *planstate.State, plan *resolver.Plan, sp profile.SystemProfile, dp profile.DeepProfile, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	start := time.Now()

	d, err := scheduler.Build(plan)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.planTimeout())
	defer cancel()

	rt := &runtime{engine: e, plan: plan, state: state, password: password, choose: choose, sp: sp, dp: dp}

	indexByID := make(map[string]int, len(plan.Steps))
	for i, s := range plan.Steps {
		indexByID[s.ID] = i
	}

	outcomes := make(map[string]StepOutcome, len(plan.Steps))
	ok := true
	runFn := func(ctx context.Context, step resolver.Step) (bool, error) {
		result, failed := rt.runStepWithRemediation(ctx, step)
		outcomes[step.ID] = StepOutcome{Step: step, Result: result}
		return !failed, nil
	}
	observe := func(stepID string, status scheduler.StepStatus, _ error) {
		o := outcomes[stepID]
		o.Status = status
		outcomes[stepID] = o
		if idx, found := indexByID[stepID]; found {
			rt.recordStepResult(idx, o.Step, o.Result, status)
		}
		if status == scheduler.StepFailed {
			ok = false
		}
		e.observeStep(string(status))
	}

	if err := scheduler.Run(ctx, d, e.workers(), runFn, observe); err != nil {
		return nil, err
	}

	cancelled := ctx.Err() != nil
	state.Status = statusFor(ok, cancelled)
	state.UpdatedAt = time.Now()
	if e.Store != nil {
		_ = e.Store.Save(state)
	}
	e.observePlanDuration(time.Since(start).Seconds())

	ordered := make([]StepOutcome, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		ordered = append(ordered, outcomes[s.ID])
	}

	return &PlanResult{OK: ok && !cancelled, PlanID: state.PlanID, Steps: ordered, ElapsedMS: time.Since(start).Milliseconds()}, nil
}

// ResumePlan loads a stored snapshot, truncates it to the steps after
// LastCompletedIndex, and re-submits the remainder to the scheduler.
func (e *Engine) ResumePlan(ctx context.Context, planID string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	st, err := e.Store.Load(planID)
	if err != nil {
		return nil, err
	}
	remaining := st.RemainingSteps()
	if len(remaining) == 0 {
		st.Status = planstate.StatusDone
		_ = e.Store.Save(st)
		return &PlanResult{OK: true, PlanID: planID}, nil
	}

	sp, dp, err := e.detectProfiles()
	if err != nil {
		return nil, err
	}

	resumedPlan := &resolver.Plan{ToolID: st.ToolID, Steps: remaining, NeedsSudo: st.Plan.NeedsSudo}
	st.Status = planstate.StatusRunning
	st.OwnerPID = currentPID()
	if err := e.Store.Save(st); err != nil {
		return nil, err
	}

	return e.runDAG(ctx, st, resumedPlan, sp, dp, password, choose)
}

// PlanFilter narrows ListPendingPlans beyond the bare {running, paused,
// failed} listing planstate.Store already does, mirroring the teacher's
// `internal/install/list.go` name/status filtering conventions. A zero
// value matches everything.
type PlanFilter struct {
	ToolID string
	Status planstate.Status
}

// ListPendingPlans returns every stored plan with status in
// {running, paused, failed}, most recently updated first, optionally
// narrowed by filter.
func (e *Engine) ListPendingPlans(filter PlanFilter) ([]*planstate.State, error) {
	all, err := e.Store.ListPending()
	if err != nil {
		return nil, err
	}
	if filter.ToolID == "" && filter.Status == "" {
		return all, nil
	}
	out := make([]*planstate.State, 0, len(all))
	for _, st := range all {
		if filter.ToolID != "" && st.ToolID != filter.ToolID {
			continue
		}
		if filter.Status != "" && st.Status != filter.Status {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// Update re-resolves toolID's recipe.Update command and runs it.
// Grounded in the teacher's `tsuku update`, which recomputes and diffs
// a plan before acting; this module's recipes don't carry an installed-
// version record to diff against, so Update always re-runs the method's
// update command.
func (e *Engine) Update(ctx context.Context, toolID string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	sp, err := profile.Detect()
	if err != nil {
		return nil, fmt.Errorf("engine: detect profile: %w", err)
	}
	plan, err := resolver.ResolveUpdate(e.Recipes, toolID, sp)
	if err != nil {
		return nil, err
	}
	if plan.AlreadyInstalled {
		return &PlanResult{OK: true, PlanID: ""}, nil
	}
	return e.ExecutePlanDAG(ctx, plan, nil, password, choose)
}

// Uninstall resolves and runs toolID's recipe.Rollback command.
// Grounded in the teacher's `internal/install/remove.go`.
func (e *Engine) Uninstall(ctx context.Context, toolID string, password stepexec.PasswordProvider, choose RemediationChooser) (*PlanResult, error) {
	sp, err := profile.Detect()
	if err != nil {
		return nil, fmt.Errorf("engine: detect profile: %w", err)
	}
	plan, err := resolver.ResolveRollback(e.Recipes, toolID, sp)
	if err != nil {
		return nil, err
	}
	if plan.AlreadyInstalled {
		return &PlanResult{OK: true, PlanID: ""}, nil
	}
	return e.ExecutePlanDAG(ctx, plan, nil, password, choose)
}

func (e *Engine) newState(plan *resolver.Plan, answers map[string]string) *planstate.State {
	now := time.Now()
	return &planstate.State{
		PlanID:             newPlanID(),
		ToolID:             plan.ToolID,
		CreatedAt:          now,
		UpdatedAt:          now,
		Status:             planstate.StatusRunning,
		Plan:               plan,
		OwnerPID:           currentPID(),
		LastCompletedIndex: -1,
		UserChoices:        answers,
	}
}

func statusFor(ok, cancelled bool) planstate.Status {
	switch {
	case cancelled:
		return planstate.StatusPaused
	case ok:
		return planstate.StatusDone
	default:
		return planstate.StatusFailed
	}
}
