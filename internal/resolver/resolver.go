package resolver

import (
	"fmt"
	"sort"

	"github.com/tsukumogami/provisor/internal/choice"
	"github.com/tsukumogami/provisor/internal/perr"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
)

// RecipeSource is the subset of *recipe.Loader the resolver needs,
// narrowed to an interface so tests can supply an in-memory fake
// instead of writing TOML fixtures to disk for every case.
type RecipeSource interface {
	Get(id string) (*recipe.Recipe, error)
}

// methodNativeFamily maps a native package-manager method key to the
// distro family it belongs to, used by method-selection's "compatible
// with profile" check for prefer-list entries.
var methodNativeFamily = map[string]string{
	"apt": "debian", "dnf": "rhel", "yum": "rhel",
	"apk": "alpine", "pacman": "arch", "zypper": "suse",
}

// Resolve produces a Plan for toolID against profile sp, with no user
// choices: each recipe choice takes its available recommended option
// (declared recommended, or the only available option of an
// auto_select_if_singleton choice), and a choice with none fails with
// ChoiceUnresolved.
func Resolve(src RecipeSource, toolID string, sp profile.SystemProfile, dp profile.DeepProfile) (*Plan, error) {
	return ResolveWithChoices(src, toolID, sp, dp, nil)
}

// ResolveWithChoices produces a Plan for toolID, splicing in the
// selected option for each recipe choice named in answers (choice id
// -> option id).
func ResolveWithChoices(src RecipeSource, toolID string, sp profile.SystemProfile, dp profile.DeepProfile, answers map[string]string) (*Plan, error) {
	return resolve(src, toolID, sp, dp, answers, nil)
}

// ResolveWithMethodOverride re-resolves toolID exactly as
// ResolveWithChoices does, except the single tool id named by
// overrideToolID is forced onto overrideMethod rather than going
// through method selection. This backs the failure analyzer's
// switch_method remediation (§4.8): it needs to regenerate the plan
// with one tool on a different install method without re-deriving the
// rest of the dependency tree's method choices.
func ResolveWithMethodOverride(src RecipeSource, toolID string, sp profile.SystemProfile, dp profile.DeepProfile, answers map[string]string, overrideToolID, overrideMethod string) (*Plan, error) {
	return resolve(src, toolID, sp, dp, answers, map[string]string{overrideToolID: overrideMethod})
}

func resolve(src RecipeSource, toolID string, sp profile.SystemProfile, dp profile.DeepProfile, answers map[string]string, forceMethod map[string]string) (*Plan, error) {
	root, err := src.Get(toolID)
	if err != nil {
		return nil, perr.Wrap(perr.KindToolNotFound, "resolver", fmt.Sprintf("recipe %q not found", toolID), err)
	}

	if !installable(root) {
		// Config-preset recipe with no install methods: nothing to do.
		return &Plan{ToolID: toolID, AlreadyInstalled: true}, nil
	}

	if profile.BinaryOnPath(toolID) {
		return &Plan{ToolID: toolID, AlreadyInstalled: true}, nil
	}

	fragments, err := resolveChoiceFragments(root, sp, dp, answers)
	if err != nil {
		return nil, err
	}

	c := &collector{
		src:         src,
		sp:          sp,
		packages:    make(map[string][]string),
		visited:     make(map[string]bool),
		visiting:    make(map[string]bool),
		forceMethod: forceMethod,
	}
	if err := c.collect(toolID, root); err != nil {
		return nil, err
	}

	var steps []Step
	stepIdx := 0
	nextID := func(prefix string) string {
		stepIdx++
		return fmt.Sprintf("%s-%d", prefix, stepIdx)
	}

	// 1. repo_setup steps from all dependency recipes (including root)
	// for the method each was resolved to, in leaf-first order.
	for _, rs := range c.repoSetup {
		steps = append(steps, Step{
			ID:        nextID("repo_setup"),
			Type:      "repo_setup",
			Label:     rs.Label,
			Command:   rs.Command,
			Env:       rs.Env,
			NeedsSudo: rs.NeedsSudo,
			TimeoutMS: rs.TimeoutMS,
			Metadata:  rs.Metadata,
		})
	}

	// 2. one packages step per family, batched set, sorted for
	// determinism (property 1 and 9).
	for _, family := range sortedKeys(c.packages) {
		pkgs := dedupeSorted(c.packages[family])
		if len(pkgs) == 0 {
			continue
		}
		steps = append(steps, Step{
			ID:        nextID("packages"),
			Type:      "packages",
			Label:     fmt.Sprintf("install system packages (%s)", family),
			NeedsSudo: true,
			Batchable: true,
			Metadata:  map[string]any{"family": family, "packages": pkgs},
		})
	}

	// 3. tool steps in reverse-topological (leaves-first) order, already
	// accumulated that way by the DFS collector. The root recipe's own
	// install step is always last (it's only appended once every
	// dependency has been recursed into), which is what "before/after
	// the primary install step" fragment positions splice around.
	var toolStepsRendered []Step
	for _, ts := range c.toolSteps {
		toolStepsRendered = append(toolStepsRendered, Step{
			ID:        nextID("tool"),
			Type:      "tool",
			Label:     fmt.Sprintf("install %s via %s", ts.toolID, ts.method),
			Command:   ts.command,
			NeedsSudo: ts.needsSudo,
			PostEnv:   append([]string(nil), ts.inheritedPostEnv...),
			Metadata:  map[string]any{"tool_id": ts.toolID, "method": ts.method},
		})
	}
	for _, fr := range fragments {
		if fr.Position != "before_install" {
			continue
		}
		frag := fr.stepsAsPlan(nextID)
		last := len(toolStepsRendered) - 1
		toolStepsRendered = append(toolStepsRendered[:last], append(frag, toolStepsRendered[last:]...)...)
	}
	for _, fr := range fragments {
		if fr.Position == "after_install" {
			toolStepsRendered = append(toolStepsRendered, fr.stepsAsPlan(nextID)...)
		}
	}
	steps = append(steps, toolStepsRendered...)

	// 4. post_install steps from the primary recipe. A step's own Type
	// carries through (e.g. "service") rather than being forced to
	// "post_install", so a recipe can enable/start a service here and
	// have both the executor's dispatch and the scheduler's implicit
	// service-serialization edges recognize it.
	for _, ps := range root.PostInstall {
		stepType := ps.Type
		if stepType == "" {
			stepType = "post_install"
		}
		steps = append(steps, Step{
			ID:        nextID("post_install"),
			Type:      stepType,
			Label:     ps.Label,
			Command:   ps.Command,
			Env:       ps.Env,
			NeedsSudo: ps.NeedsSudo,
			TimeoutMS: ps.TimeoutMS,
			Metadata:  ps.Metadata,
		})
	}

	// 5. verify step.
	steps = append(steps, Step{
		ID:      nextID("verify"),
		Type:    "verify",
		Label:   "verify install",
		Command: []string{"bash", "-c", root.Verify},
	})

	// Chain each step to the one before it within this plan: the
	// assembly order above already encodes a real dependency (packages
	// before the tool that needs them, the tool before its verify), so
	// the DAG scheduler's explicit depends_on edges are just that
	// sequence made data instead of implicit in a slice's order. Two
	// resolver plans merged into one scheduler run are only linked by
	// the scheduler's own PM-lock/service edges, not by this loop, which
	// is what lets independent top-level installs run concurrently.
	for i := 1; i < len(steps); i++ {
		steps[i].DependsOn = []string{steps[i-1].ID}
	}

	plan := &Plan{ToolID: toolID, Steps: steps}
	for _, s := range steps {
		if s.NeedsSudo {
			plan.NeedsSudo = true
			break
		}
	}
	return plan, nil
}

// installable mirrors recipe.installable (unexported there); a recipe
// with no install methods is a config preset.
func installable(r *recipe.Recipe) bool {
	return len(r.Install) > 0
}

func methodCompatible(method string, sp profile.SystemProfile) bool {
	if family, ok := methodNativeFamily[method]; ok {
		return sp.DistroFamily == family
	}
	if method == "snap" {
		return sp.HasSystemd
	}
	return true
}

// selectMethod implements §4.3's method-selection algorithm. Step 5's
// "declared order in install" tie-break is impossible to honor
// literally because TOML tables unmarshal into a Go map with no
// preserved key order; lexicographic method-key order is substituted,
// which still satisfies the determinism guarantee (byte-identical
// plans for a fixed recipe registry) even though it isn't the literal
// source-file order.
func selectMethod(r *recipe.Recipe, sp profile.SystemProfile) (string, error) {
	return selectMethodFrom(r.Install, r.Prefer, sp)
}

// selectMethodFrom implements §4.3's method-selection algorithm against
// an arbitrary method map, so ResolveUpdate/ResolveRollback can reuse
// the exact same ordering rules against recipe.Update/recipe.Rollback
// instead of recipe.Install.
func selectMethodFrom(methods map[string]string, prefer []string, sp profile.SystemProfile) (string, error) {
	for _, m := range prefer {
		if _, ok := methods[m]; ok && methodCompatible(m, sp) {
			return m, nil
		}
	}
	if sp.PrimaryPM != "" {
		if _, ok := methods[sp.PrimaryPM]; ok {
			return sp.PrimaryPM, nil
		}
	}
	if sp.SnapAvailable && sp.HasSystemd {
		if _, ok := methods["snap"]; ok {
			return "snap", nil
		}
	}
	if _, ok := methods["_default"]; ok {
		return "_default", nil
	}
	for _, m := range mapKeys(methods) {
		if profile.BinaryOnPath(methodImplementor(m)) {
			return m, nil
		}
	}
	return "", perr.New(perr.KindNoSelectableMethod, "resolver", "no selectable method on this system").
		WithContext("attempted_methods", mapKeys(methods)).
		WithContext("profile", sp)
}

// methodImplementor names the binary that must be on PATH for a
// language-package-manager method to be directly usable.
func methodImplementor(method string) string {
	switch method {
	case "pip", "pipx":
		return "pip3"
	case "npm":
		return "npm"
	case "cargo":
		return "cargo"
	case "go":
		return "go"
	case "brew":
		return "brew"
	default:
		return method
	}
}

func mapKeys(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func sortedKeys(m map[string][]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func dedupeSorted(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// resolveChoiceFragments validates answers against recipe.Choices
// (auto-selecting singleton choices where allowed) and returns the
// chosen plan fragments.
func resolveChoiceFragments(r *recipe.Recipe, sp profile.SystemProfile, dp profile.DeepProfile, answers map[string]string) ([]fragment, error) {
	if len(r.Choices) == 0 {
		return nil, nil
	}

	resolved := choice.Resolve(r, sp, dp)
	var frags []fragment
	for _, c := range resolved {
		answer, has := answers[c.ID]
		if !has {
			// no answer: fall back to the available recommended option
			// (declared, or set by auto_select_if_singleton)
			if rec := findRecommended(c); rec != nil {
				frags = append(frags, fragment{Position: rec.PlanFragment.Position, Steps: rec.PlanFragment.Steps})
				continue
			}
			return nil, perr.New(perr.KindChoiceUnresolved, "resolver", fmt.Sprintf("choice %q has no answer", c.ID)).
				WithContext("choice_id", c.ID)
		}
		var chosen *recipe.ChoiceOption
		for i := range c.Options {
			if c.Options[i].ID == answer {
				chosen = &c.Options[i]
				break
			}
		}
		if chosen == nil {
			return nil, perr.New(perr.KindChoiceUnresolved, "resolver", fmt.Sprintf("choice %q has no option %q", c.ID, answer)).
				WithContext("choice_id", c.ID)
		}
		if !chosen.Available {
			return nil, perr.New(perr.KindChoiceUnresolved, "resolver", fmt.Sprintf("choice %q option %q is not available", c.ID, answer)).
				WithContext("choice_id", c.ID).WithContext("disabled_reason", chosen.DisabledReason)
		}
		frags = append(frags, fragment{Position: chosen.PlanFragment.Position, Steps: chosen.PlanFragment.Steps})
	}
	return frags, nil
}

func findRecommended(c recipe.Choice) *recipe.ChoiceOption {
	for i := range c.Options {
		if c.Options[i].Available && c.Options[i].Recommended {
			return &c.Options[i]
		}
	}
	return nil
}

type fragment struct {
	Position string
	Steps    []recipe.Step
}

func (f fragment) stepsAsPlan(nextID func(string) string) []Step {
	out := make([]Step, 0, len(f.Steps))
	for _, s := range f.Steps {
		out = append(out, Step{
			ID:        nextID("fragment"),
			Type:      s.Type,
			Label:     s.Label,
			Command:   s.Command,
			Env:       s.Env,
			NeedsSudo: s.NeedsSudo,
			TimeoutMS: s.TimeoutMS,
			Metadata:  s.Metadata,
		})
	}
	return out
}
