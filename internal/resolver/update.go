package resolver

import (
	"fmt"

	"github.com/tsukumogami/provisor/internal/perr"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
)

// ResolveUpdate produces a Plan that re-runs toolID's recipe.Update
// command under the method-selection rules of §4.3, mirroring how
// Resolve handles recipe.Install. Unlike Resolve, it does not walk
// requires.binaries: an update is an in-place replacement of an
// already-installed tool, not a fresh dependency-tree install.
func ResolveUpdate(src RecipeSource, toolID string, sp profile.SystemProfile) (*Plan, error) {
	return resolveSingleStep(src, toolID, sp, func(r *recipe.Recipe) map[string]string { return r.Update },
		"update", "update %s via %s")
}

// ResolveRollback is symmetric to ResolveUpdate, against
// recipe.Rollback — it produces an uninstall plan for an already
// installed tool.
func ResolveRollback(src RecipeSource, toolID string, sp profile.SystemProfile) (*Plan, error) {
	return resolveSingleStep(src, toolID, sp, func(r *recipe.Recipe) map[string]string { return r.Rollback },
		"rollback", "roll back %s via %s")
}

// resolveSingleStep renders the update/rollback step as step type
// "tool" (the same generic streamed-command kind C5 already dispatches
// for install), carrying an "action" metadata key so the step executor
// and failure analyzer can tell update/rollback apart from a plain
// install if they ever need to.
func resolveSingleStep(src RecipeSource, toolID string, sp profile.SystemProfile, methodsOf func(*recipe.Recipe) map[string]string, action, labelFmt string) (*Plan, error) {
	r, err := src.Get(toolID)
	if err != nil {
		return nil, perr.Wrap(perr.KindToolNotFound, "resolver", fmt.Sprintf("recipe %q not found", toolID), err)
	}

	methods := methodsOf(r)
	if len(methods) == 0 {
		// No update/rollback command declared: reuses AlreadyInstalled
		// as "nothing to do" rather than adding a second no-op plan
		// flag just for this case.
		return &Plan{ToolID: toolID, AlreadyInstalled: true}, nil
	}

	method, err := selectMethodFrom(methods, r.Prefer, sp)
	if err != nil {
		return nil, err
	}

	step := Step{
		ID:        action + "-1",
		Type:      "tool",
		Label:     fmt.Sprintf(labelFmt, toolID, method),
		Command:   []string{"bash", "-c", methods[method]},
		NeedsSudo: r.NeedsSudo[method],
		Metadata:  map[string]any{"tool_id": toolID, "method": method, "action": action},
	}

	plan := &Plan{ToolID: toolID, Steps: []Step{step}, NeedsSudo: step.NeedsSudo}
	return plan, nil
}
