package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/tsukumogami/provisor/internal/analyzer"
	"github.com/tsukumogami/provisor/internal/log"
	"github.com/tsukumogami/provisor/internal/planstate"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/resolver"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

// fakeSource is an in-memory RecipeSource, mirroring the resolver
// package's own test fixture so engine tests don't need TOML files on
// disk.
type fakeSource struct {
	recipes map[string]*recipe.Recipe
}

func (f *fakeSource) Get(id string) (*recipe.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, fmt.Errorf("no recipe %q", id)
	}
	return r, nil
}

func newTestEngine(t *testing.T, src resolver.RecipeSource) *Engine {
	t.Helper()
	store, err := planstate.New(t.TempDir())
	if err != nil {
		t.Fatalf("planstate.New() error = %v", err)
	}
	return &Engine{
		Recipes:  src,
		Executor: stepexec.New(log.NewNoop(), nil),
		Store:    store,
	}
}

func okRegistry() *fakeSource {
	return &fakeSource{recipes: map[string]*recipe.Recipe{
		"greeter": {
			Install:   map[string]string{"_default": "echo hello"},
			NeedsSudo: map[string]bool{"_default": false},
			Verify:    "true",
		},
	}}
}

func TestInstallTool_AlreadyInstalledShortCircuits(t *testing.T) {
	src := &fakeSource{recipes: map[string]*recipe.Recipe{
		"bash": {Verify: "true"}, // no Install map => not installable, treated as already satisfied
	}}
	e := newTestEngine(t, src)
	res, err := e.InstallTool(context.Background(), "bash", nil, nil, nil)
	if err != nil {
		t.Fatalf("InstallTool() error = %v", err)
	}
	if !res.OK || res.PlanID != "" {
		t.Fatalf("expected short-circuited OK result with no plan id, got %+v", res)
	}
}

func TestInstallTool_RunsResolvedPlanAndPersistsState(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	res, err := e.InstallTool(context.Background(), "greeter", nil, nil, nil)
	if err != nil {
		t.Fatalf("InstallTool() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.PlanID == "" {
		t.Fatal("expected a non-empty plan id for an executed plan")
	}
	st, err := e.Store.Load(res.PlanID)
	if err != nil {
		t.Fatalf("Store.Load() error = %v", err)
	}
	if st.Status != planstate.StatusDone {
		t.Errorf("stored status = %v, want done", st.Status)
	}
}

func TestExecutePlan_LinearStopsAtFirstFailure(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	plan := &resolver.Plan{
		ToolID: "greeter",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", "exit 1"}},
			{ID: "b", Type: "verify", Label: "b", Command: []string{"sh", "-c", "echo never"}},
		},
	}
	res, err := e.ExecutePlan(context.Background(), plan, nil, nil, nil)
	if err != nil {
		t.Fatalf("ExecutePlan() error = %v", err)
	}
	if res.OK {
		t.Fatal("expected overall failure")
	}
	if len(res.Steps) != 1 {
		t.Fatalf("expected execution to stop after the failing first step, got %d outcomes", len(res.Steps))
	}
}

func TestExecutePlanDAG_IndependentStepsAllRun(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	plan := &resolver.Plan{
		ToolID: "greeter",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", "true"}},
			{ID: "b", Type: "verify", Label: "b", Command: []string{"sh", "-c", "true"}},
			{ID: "c", Type: "verify", Label: "c", Command: []string{"sh", "-c", "true"}, DependsOn: []string{"a", "b"}},
		},
	}
	res, err := e.ExecutePlanDAG(context.Background(), plan, nil, nil, nil)
	if err != nil {
		t.Fatalf("ExecutePlanDAG() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Steps) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(res.Steps))
	}
}

func TestResumePlan_RunsOnlyRemainingSteps(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	plan := &resolver.Plan{
		ToolID: "greeter",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", "true"}},
			{ID: "b", Type: "verify", Label: "b", Command: []string{"sh", "-c", "true"}},
		},
	}
	st := &planstate.State{
		PlanID:             "resume-me",
		ToolID:             "greeter",
		Status:             planstate.StatusPaused,
		Plan:               plan,
		LastCompletedIndex: 0,
	}
	if err := e.Store.Save(st); err != nil {
		t.Fatalf("Store.Save() error = %v", err)
	}

	res, err := e.ResumePlan(context.Background(), "resume-me", nil, nil)
	if err != nil {
		t.Fatalf("ResumePlan() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Steps) != 1 || res.Steps[0].Step.ID != "b" {
		t.Fatalf("expected only step b to run, got %+v", res.Steps)
	}
}

// TestResumePlan_ResolverProducedChainDropsDanglingDependency exercises
// the real resolver output rather than a hand-built plan:
// resolver.Resolve chains every step's DependsOn to its immediate
// predecessor, so resuming after the first step must not hand the
// scheduler a first remaining step whose DependsOn still names a
// completed, now-truncated step id.
func TestResumePlan_ResolverProducedChainDropsDanglingDependency(t *testing.T) {
	src := &fakeSource{recipes: map[string]*recipe.Recipe{
		"toolchain": {
			Install:   map[string]string{"_default": "echo toolchain"},
			NeedsSudo: map[string]bool{"_default": false},
			Requires:  recipe.Requires{Binaries: []string{"provisor-test-fixture-base"}},
			Verify:    "true",
		},
		"provisor-test-fixture-base": {
			Install:   map[string]string{"_default": "echo base"},
			NeedsSudo: map[string]bool{"_default": false},
			Verify:    "true",
		},
	}}
	e := newTestEngine(t, src)

	sp, dp, err := e.detectProfiles()
	if err != nil {
		t.Fatalf("detectProfiles() error = %v", err)
	}
	plan, err := resolver.Resolve(src, "toolchain", sp, dp)
	if err != nil {
		t.Fatalf("resolver.Resolve() error = %v", err)
	}
	if len(plan.Steps) < 3 {
		t.Fatalf("expected a dependency + tool + verify chain, got %+v", plan.Steps)
	}
	for i := 1; i < len(plan.Steps); i++ {
		if len(plan.Steps[i].DependsOn) == 0 || plan.Steps[i].DependsOn[0] != plan.Steps[i-1].ID {
			t.Fatalf("expected resolver to chain step %d to its predecessor, got %+v", i, plan.Steps[i])
		}
	}

	st := &planstate.State{
		PlanID:             "resume-resolver-chain",
		ToolID:             "toolchain",
		Status:             planstate.StatusPaused,
		Plan:               plan,
		LastCompletedIndex: 0,
	}
	if err := e.Store.Save(st); err != nil {
		t.Fatalf("Store.Save() error = %v", err)
	}

	res, err := e.ResumePlan(context.Background(), "resume-resolver-chain", nil, nil)
	if err != nil {
		t.Fatalf("ResumePlan() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Steps) != len(plan.Steps)-1 {
		t.Fatalf("expected %d resumed steps, got %+v", len(plan.Steps)-1, res.Steps)
	}
}

func TestResumePlan_NoRemainingStepsMarksDoneWithoutRunning(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	plan := &resolver.Plan{
		ToolID: "greeter",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", "true"}},
		},
	}
	st := &planstate.State{
		PlanID:             "all-done",
		ToolID:             "greeter",
		Status:             planstate.StatusPaused,
		Plan:               plan,
		LastCompletedIndex: 0,
	}
	if err := e.Store.Save(st); err != nil {
		t.Fatalf("Store.Save() error = %v", err)
	}

	res, err := e.ResumePlan(context.Background(), "all-done", nil, nil)
	if err != nil {
		t.Fatalf("ResumePlan() error = %v", err)
	}
	if !res.OK || len(res.Steps) != 0 {
		t.Fatalf("expected a no-op success, got %+v", res)
	}
	reloaded, err := e.Store.Load("all-done")
	if err != nil {
		t.Fatalf("Store.Load() error = %v", err)
	}
	if reloaded.Status != planstate.StatusDone {
		t.Errorf("status = %v, want done", reloaded.Status)
	}
}

func TestListPendingPlans_DelegatesToStore(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	st := &planstate.State{PlanID: "p1", ToolID: "greeter", Status: planstate.StatusPaused, Plan: &resolver.Plan{ToolID: "greeter"}}
	if err := e.Store.Save(st); err != nil {
		t.Fatalf("Store.Save() error = %v", err)
	}
	pending, err := e.ListPendingPlans(PlanFilter{})
	if err != nil {
		t.Fatalf("ListPendingPlans() error = %v", err)
	}
	if len(pending) != 1 || pending[0].PlanID != "p1" {
		t.Fatalf("pending = %+v, want [p1]", pending)
	}
}

func TestUpdate_RunsUpdateCommand(t *testing.T) {
	src := &fakeSource{recipes: map[string]*recipe.Recipe{
		"greeter": {
			Install:   map[string]string{"_default": "echo hello"},
			NeedsSudo: map[string]bool{"_default": false},
			Update:    map[string]string{"_default": "echo updated"},
			Verify:    "true",
		},
	}}
	e := newTestEngine(t, src)
	res, err := e.Update(context.Background(), "greeter", nil, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !res.OK || len(res.Steps) != 1 {
		t.Fatalf("expected a single successful update step, got %+v", res)
	}
}

func TestUpdate_NoUpdateCommandIsNoOp(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	res, err := e.Update(context.Background(), "greeter", nil, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !res.OK || res.PlanID != "" {
		t.Fatalf("expected a no-op success, got %+v", res)
	}
}

func TestUninstall_RunsRollbackCommand(t *testing.T) {
	src := &fakeSource{recipes: map[string]*recipe.Recipe{
		"greeter": {
			Install:   map[string]string{"_default": "echo hello"},
			NeedsSudo: map[string]bool{"_default": false},
			Rollback:  map[string]string{"_default": "echo removed"},
			Verify:    "true",
		},
	}}
	e := newTestEngine(t, src)
	res, err := e.Uninstall(context.Background(), "greeter", nil, nil)
	if err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if !res.OK || len(res.Steps) != 1 {
		t.Fatalf("expected a single successful rollback step, got %+v", res)
	}
}

func TestListPendingPlans_FiltersByToolIDAndStatus(t *testing.T) {
	e := newTestEngine(t, okRegistry())
	for _, st := range []*planstate.State{
		{PlanID: "p1", ToolID: "greeter", Status: planstate.StatusRunning, Plan: &resolver.Plan{ToolID: "greeter"}},
		{PlanID: "p2", ToolID: "other", Status: planstate.StatusFailed, Plan: &resolver.Plan{ToolID: "other"}},
	} {
		if err := e.Store.Save(st); err != nil {
			t.Fatalf("Store.Save() error = %v", err)
		}
	}

	byTool, err := e.ListPendingPlans(PlanFilter{ToolID: "other"})
	if err != nil {
		t.Fatalf("ListPendingPlans() error = %v", err)
	}
	if len(byTool) != 1 || byTool[0].PlanID != "p2" {
		t.Fatalf("byTool = %+v, want [p2]", byTool)
	}

	byStatus, err := e.ListPendingPlans(PlanFilter{Status: planstate.StatusRunning})
	if err != nil {
		t.Fatalf("ListPendingPlans() error = %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].PlanID != "p1" {
		t.Fatalf("byStatus = %+v, want [p1]", byStatus)
	}
}

func TestRemediation_AutoAppliesReadyOptionAndRetries(t *testing.T) {
	toolRecipe := &recipe.Recipe{
		Install:   map[string]string{"_default": "true"},
		NeedsSudo: map[string]bool{"_default": false},
		OnFailure: []recipe.Handler{{
			Pattern:   "permission denied",
			FailureID: "fixture.perm_denied",
			Options: []recipe.Option{{
				Strategy: recipe.StrategyCleanupRetry,
				Label:    "clear the marker file",
				Commands: []string{"true"},
			}},
		}},
	}
	src := &fakeSource{recipes: map[string]*recipe.Recipe{"flaky": toolRecipe}}
	e := newTestEngine(t, src)
	e.AutoApplyReady = true

	marker := t.TempDir() + "/flaky_marker"
	failOnce := fmt.Sprintf("if [ -f %s ]; then echo ok; else touch %s; echo permission denied 1>&2; exit 1; fi", marker, marker)
	plan := &resolver.Plan{
		ToolID: "flaky",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", failOnce}, Metadata: map[string]any{"tool_id": "flaky", "method": "_default"}},
		},
	}
	res, err := e.ExecutePlan(context.Background(), plan, nil, nil, nil)
	if err != nil {
		t.Fatalf("ExecutePlan() error = %v", err)
	}
	if !res.OK {
		t.Fatalf("expected remediation+retry to succeed, got %+v", res)
	}
}

func TestRemediation_NoAutoApplyEscalatesToChooser(t *testing.T) {
	toolRecipe := &recipe.Recipe{
		Install: map[string]string{"_default": "true"},
		OnFailure: []recipe.Handler{{
			Pattern:   "boom",
			FailureID: "fixture.boom",
			Options: []recipe.Option{{
				Strategy: recipe.StrategyManual,
				Label:    "ask a human",
				Message:  "do something",
			}},
		}},
	}
	src := &fakeSource{recipes: map[string]*recipe.Recipe{"broken": toolRecipe}}
	e := newTestEngine(t, src)

	var gotOptions []analyzer.RankedOption
	chooser := func(step resolver.Step, options []analyzer.RankedOption) (*analyzer.RankedOption, bool) {
		gotOptions = options
		return nil, false
	}

	plan := &resolver.Plan{
		ToolID: "broken",
		Steps: []resolver.Step{
			{ID: "a", Type: "verify", Label: "a", Command: []string{"sh", "-c", "echo boom 1>&2; exit 1"}, Metadata: map[string]any{"tool_id": "broken", "method": "_default"}},
		},
	}
	res, err := e.ExecutePlan(context.Background(), plan, nil, nil, chooser)
	if err != nil {
		t.Fatalf("ExecutePlan() error = %v", err)
	}
	if res.OK {
		t.Fatal("expected failure since the chooser declined remediation")
	}
	if len(gotOptions) != 1 || gotOptions[0].FailureID != "fixture.boom" {
		t.Fatalf("expected the chooser to see the manual option, got %+v", gotOptions)
	}
}
