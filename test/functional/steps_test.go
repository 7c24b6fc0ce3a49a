package functional

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/tsukumogami/provisor/internal/analyzer"
	"github.com/tsukumogami/provisor/internal/choice"
	"github.com/tsukumogami/provisor/internal/planstate"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
	"github.com/tsukumogami/provisor/internal/resolver"
	"github.com/tsukumogami/provisor/internal/stepexec"
)

type scenarioState struct {
	stateDir string

	sp profile.SystemProfile
	dp profile.DeepProfile

	plan    *resolver.Plan
	planErr error

	choices []recipe.Choice

	failStep   resolver.Step
	failResult stepexec.Result
	failRecipe *recipe.Recipe
	rankedOpts []analyzer.RankedOption

	store        *planstate.Store
	planID       string
	resumedState *planstate.State
	resubmitted  []resolver.Step

	origPATH     string
	pathModified bool
}

func (s *scenarioState) restorePATH() {
	if s.pathModified {
		os.Setenv("PATH", s.origPATH)
	}
}

// bundledLoader returns a *recipe.Loader backed entirely by the
// module's bundled recipe set: passing a directory that never
// contains any .toml files means every lookup falls through to
// recipe.Bundled, the same fallback tier a fresh install with no
// --recipes-dir override uses.
func bundledLoader() *recipe.Loader {
	return recipe.New(filepath.Join(os.TempDir(), "provisor-functional-empty-recipes-dir"), "")
}

// namedProfiles maps the feature files' human-readable profile names
// to the fixed system/deep profiles S1-S6 describe.
func namedProfiles(name string) (profile.SystemProfile, profile.DeepProfile, error) {
	switch name {
	case "ubuntu-22.04":
		return profile.SystemProfile{
			OS: "linux", Distro: "ubuntu", DistroFamily: "debian", DistroVersion: "22.04",
			Arch: "x86_64", PrimaryPM: "apt", SnapAvailable: true, HasSystemd: true,
			WritableRootfs: true,
		}, profile.DeepProfile{GPU: "none"}, nil
	case "fedora-39":
		return profile.SystemProfile{
			OS: "linux", Distro: "fedora", DistroFamily: "rhel", DistroVersion: "39",
			Arch: "x86_64", PrimaryPM: "dnf", HasSystemd: true, WritableRootfs: true,
		}, profile.DeepProfile{GPU: "none"}, nil
	case "alpine-no-systemd":
		return profile.SystemProfile{
			OS: "linux", Distro: "alpine", DistroFamily: "alpine", DistroVersion: "3.19",
			Arch: "x86_64", PrimaryPM: "apk", HasSystemd: false, SnapAvailable: false,
			WritableRootfs: true,
		}, profile.DeepProfile{GPU: "none"}, nil
	case "debian-12":
		return profile.SystemProfile{
			OS: "linux", Distro: "debian", DistroFamily: "debian", DistroVersion: "12",
			Arch: "x86_64", PrimaryPM: "apt", HasSystemd: true, WritableRootfs: true,
		}, profile.DeepProfile{GPU: "none"}, nil
	case "no-gpu":
		return profile.SystemProfile{OS: "linux", DistroFamily: "debian", PrimaryPM: "apt", HasSystemd: true},
			profile.DeepProfile{GPU: "none"}, nil
	default:
		return profile.SystemProfile{}, profile.DeepProfile{}, fmt.Errorf("unknown system profile %q", name)
	}
}

func theSystemProfile(ctx context.Context, name string) error {
	s := getState(ctx)
	sp, dp, err := namedProfiles(name)
	if err != nil {
		return err
	}
	s.sp, s.dp = sp, dp
	return nil
}

// binariesNotOnPath hides the named binaries' directories from PATH
// for the rest of this scenario, so resolver.Resolve's
// profile.BinaryOnPath checks (§4.3's dependency short-circuit) see
// them as absent regardless of what's installed on the machine
// actually running this test suite.
func binariesNotOnPath(ctx context.Context, a, b string) error {
	s := getState(ctx)
	s.origPATH = os.Getenv("PATH")
	s.pathModified = true

	hide := map[string]bool{a: true, b: true}
	var kept []string
	for _, dir := range filepath.SplitList(s.origPATH) {
		hidden := false
		for name := range hide {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				hidden = true
				break
			}
		}
		if !hidden {
			kept = append(kept, dir)
		}
	}
	os.Setenv("PATH", strings.Join(kept, string(os.PathListSeparator)))
	return nil
}

func iResolveThePlan(ctx context.Context, toolID string) error {
	s := getState(ctx)
	s.plan, s.planErr = resolver.Resolve(bundledLoader(), toolID, s.sp, s.dp)
	return nil
}

func parseAnswers(raw string) map[string]string {
	answers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok {
			answers[k] = v
		}
	}
	return answers
}

func iResolveThePlanAnswering(ctx context.Context, toolID, rawAnswers string) error {
	s := getState(ctx)
	s.plan, s.planErr = resolver.ResolveWithChoices(bundledLoader(), toolID, s.sp, s.dp, parseAnswers(rawAnswers))
	return nil
}

func iResolveChoicesFor(ctx context.Context, toolID string) error {
	s := getState(ctx)
	r, err := bundledLoader().Get(toolID)
	if err != nil {
		return err
	}
	s.choices = choice.Resolve(r, s.sp, s.dp)
	return nil
}

func thePlanHasSteps(ctx context.Context, want int) error {
	s := getState(ctx)
	if s.planErr != nil {
		return fmt.Errorf("resolve failed: %w", s.planErr)
	}
	if len(s.plan.Steps) != want {
		labels := make([]string, len(s.plan.Steps))
		for i, st := range s.plan.Steps {
			labels[i] = fmt.Sprintf("%d:%s(%s)", i+1, st.Type, st.Label)
		}
		return fmt.Errorf("expected %d steps, got %d: %v", want, len(s.plan.Steps), labels)
	}
	return nil
}

func stepAt(s *scenarioState, n int) (resolver.Step, error) {
	if s.planErr != nil {
		return resolver.Step{}, fmt.Errorf("resolve failed: %w", s.planErr)
	}
	if n < 1 || n > len(s.plan.Steps) {
		return resolver.Step{}, fmt.Errorf("step %d out of range (plan has %d steps)", n, len(s.plan.Steps))
	}
	return s.plan.Steps[n-1], nil
}

func stepHasTypeAndCommandMentions(ctx context.Context, n int, wantType, substr string) error {
	step, err := stepAt(getState(ctx), n)
	if err != nil {
		return err
	}
	if step.Type != wantType {
		return fmt.Errorf("step %d type = %q, want %q", n, step.Type, wantType)
	}
	joined := strings.Join(step.Command, " ")
	if !strings.Contains(joined, substr) {
		return fmt.Errorf("step %d command %q does not mention %q", n, joined, substr)
	}
	return nil
}

func stepHasTypeAndLabelMentions(ctx context.Context, n int, wantType, substr string) error {
	step, err := stepAt(getState(ctx), n)
	if err != nil {
		return err
	}
	if step.Type != wantType {
		return fmt.Errorf("step %d type = %q, want %q", n, step.Type, wantType)
	}
	if !strings.Contains(step.Label, substr) {
		return fmt.Errorf("step %d label %q does not mention %q", n, step.Label, substr)
	}
	return nil
}

func planContainsServiceStep(ctx context.Context, wantType, wantUnit string) error {
	s := getState(ctx)
	if s.planErr != nil {
		return fmt.Errorf("resolve failed: %w", s.planErr)
	}
	for _, step := range s.plan.Steps {
		if step.Type != wantType {
			continue
		}
		if unit, _ := step.Metadata["unit"].(string); unit == wantUnit {
			return nil
		}
	}
	return fmt.Errorf("no %q step with metadata unit %q found in plan", wantType, wantUnit)
}

func noPlanStepCommandMentions(ctx context.Context, substr string) error {
	s := getState(ctx)
	if s.planErr != nil {
		return fmt.Errorf("resolve failed: %w", s.planErr)
	}
	for _, step := range s.plan.Steps {
		if strings.Contains(strings.Join(step.Command, " "), substr) {
			return fmt.Errorf("step %q unexpectedly mentions %q", step.Label, substr)
		}
	}
	return nil
}

func findChoiceOption(s *scenarioState, choiceID, optionID string) (*recipe.ChoiceOption, error) {
	for _, c := range s.choices {
		if c.ID != choiceID {
			continue
		}
		for i := range c.Options {
			if c.Options[i].ID == optionID {
				return &c.Options[i], nil
			}
		}
		return nil, fmt.Errorf("choice %q has no option %q", choiceID, optionID)
	}
	return nil, fmt.Errorf("no choice %q resolved", choiceID)
}

func choiceOptionUnavailableMentioning(ctx context.Context, choiceID, optionID, substr string) error {
	opt, err := findChoiceOption(getState(ctx), choiceID, optionID)
	if err != nil {
		return err
	}
	if opt.Available {
		return fmt.Errorf("option %q is available, want unavailable", optionID)
	}
	if !strings.Contains(opt.DisabledReason, substr) {
		return fmt.Errorf("disabled_reason %q does not mention %q", opt.DisabledReason, substr)
	}
	return nil
}

func choiceOptionUnavailable(ctx context.Context, choiceID, optionID string) error {
	opt, err := findChoiceOption(getState(ctx), choiceID, optionID)
	if err != nil {
		return err
	}
	if opt.Available {
		return fmt.Errorf("option %q is available, want unavailable", optionID)
	}
	return nil
}

func choiceOptionAvailable(ctx context.Context, choiceID, optionID string) error {
	opt, err := findChoiceOption(getState(ctx), choiceID, optionID)
	if err != nil {
		return err
	}
	if !opt.Available {
		return fmt.Errorf("option %q is unavailable (%s), want available", optionID, opt.DisabledReason)
	}
	return nil
}

func choiceOptionAvailableAndRecommended(ctx context.Context, choiceID, optionID string) error {
	opt, err := findChoiceOption(getState(ctx), choiceID, optionID)
	if err != nil {
		return err
	}
	if !opt.Available {
		return fmt.Errorf("option %q is unavailable, want available", optionID)
	}
	if !opt.Recommended {
		return fmt.Errorf("option %q is not recommended", optionID)
	}
	return nil
}

func aFailedStepWithStderr(ctx context.Context, stepType, label, stderr string) error {
	s := getState(ctx)
	s.failStep = resolver.Step{Type: stepType, Label: label}
	s.failResult = stepexec.Result{
		Status:     stepexec.StatusFailed,
		ExitCode:   1,
		StderrTail: []string{stderr},
	}
	return nil
}

func iAnalyzeTheFailure(ctx context.Context, toolID string) error {
	s := getState(ctx)
	r, err := bundledLoader().Get(toolID)
	if err != nil {
		return err
	}
	s.failRecipe = r
	s.rankedOpts = analyzer.Analyze(r, s.failStep, s.failResult, s.sp, s.dp)
	return nil
}

func theRankedOptionsAreInOrder(ctx context.Context, table *godog.Table) error {
	s := getState(ctx)
	if len(s.rankedOpts) != len(table.Rows)-1 {
		return fmt.Errorf("expected %d ranked options, got %d", len(table.Rows)-1, len(s.rankedOpts))
	}
	for i, row := range table.Rows[1:] {
		wantStrategy := row.Cells[0].Value
		wantAvail := row.Cells[1].Value
		got := s.rankedOpts[i]
		if string(got.Strategy) != wantStrategy {
			return fmt.Errorf("option %d strategy = %q, want %q", i+1, got.Strategy, wantStrategy)
		}
		if string(got.Availability) != wantAvail {
			return fmt.Errorf("option %d availability = %q, want %q", i+1, got.Availability, wantAvail)
		}
	}
	return nil
}

func optionSwitchesToMethod(ctx context.Context, n int, method string) error {
	s := getState(ctx)
	if n < 1 || n > len(s.rankedOpts) {
		return fmt.Errorf("option %d out of range", n)
	}
	opt := s.rankedOpts[n-1]
	if opt.Method != method {
		return fmt.Errorf("option %d switches to method %q, want %q", n, opt.Method, method)
	}
	return nil
}

func aPlanSavedWithStatus(ctx context.Context, stepCount int, toolID, status string, lastCompleted int) error {
	s := getState(ctx)
	store, err := planstate.New(s.stateDir)
	if err != nil {
		return err
	}
	s.store = store

	steps := make([]resolver.Step, stepCount)
	for i := range steps {
		steps[i] = resolver.Step{ID: fmt.Sprintf("step-%d", i+1), Type: "tool", Label: fmt.Sprintf("step %d", i+1)}
	}
	s.planID = "functional-test-plan"
	state := &planstate.State{
		PlanID:             s.planID,
		ToolID:             toolID,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
		Status:             planstate.Status(status),
		Plan:               &resolver.Plan{ToolID: toolID, Steps: steps},
		LastCompletedIndex: lastCompleted,
	}
	return s.store.Save(state)
}

func iResumeThePlan(ctx context.Context) error {
	s := getState(ctx)
	state, err := s.store.Load(s.planID)
	if err != nil {
		return err
	}
	s.resumedState = state
	s.resubmitted = state.RemainingSteps()
	return nil
}

func theRemainingStepsAre(ctx context.Context, a, b, c int) error {
	s := getState(ctx)
	if len(s.resubmitted) != 3 {
		return fmt.Errorf("expected 3 remaining steps, got %d", len(s.resubmitted))
	}
	want := []string{fmt.Sprintf("step-%d", a), fmt.Sprintf("step-%d", b), fmt.Sprintf("step-%d", c)}
	for i, id := range want {
		if s.resubmitted[i].ID != id {
			return fmt.Errorf("remaining step %d = %q, want %q", i, s.resubmitted[i].ID, id)
		}
	}
	return nil
}

func eachStepExecutedOnce(ctx context.Context, a, b int) error {
	s := getState(ctx)
	idxA, idxB := a-1, b-1
	if s.resumedState.LastCompletedIndex < idxA || s.resumedState.LastCompletedIndex < idxB {
		return fmt.Errorf("steps %d and %d are not both marked completed (last_completed_index=%d)",
			a, b, s.resumedState.LastCompletedIndex)
	}
	for _, step := range s.resubmitted {
		if step.ID == fmt.Sprintf("step-%d", a) || step.ID == fmt.Sprintf("step-%d", b) {
			return fmt.Errorf("step %s was resubmitted on resume, expected only steps after the cursor", step.ID)
		}
	}
	return nil
}
