package resolver

import (
	"fmt"

	"github.com/tsukumogami/provisor/internal/perr"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
)

// toolStep is one resolved dependency-tree node: the tool id, the
// method it was resolved to, its expanded install command, whether it
// needs sudo, and the post_env fragments it inherits from its own
// transitive dependencies.
type toolStep struct {
	toolID           string
	method           string
	command          []string
	needsSudo        bool
	inheritedPostEnv []string
}

// repoSetupStep is one repo_setup entry rendered for the method a
// dependency recipe (or the root) was resolved to.
type repoSetupStep struct {
	Label     string
	Command   []string
	Env       map[string]string
	NeedsSudo bool
	TimeoutMS int
	Metadata  map[string]any
}

// collector performs the §4.3 DFS: visiting requires.binaries,
// skipping binaries already on PATH, accumulating the package batch
// set, the leaf-first tool step list, repo_setup steps, and the
// post_env each tool id exports to its dependents.
type collector struct {
	src RecipeSource
	sp  profile.SystemProfile

	packages  map[string][]string
	toolSteps []toolStep
	repoSetup []repoSetupStep
	postEnvOf map[string]string // toolID -> its own post_env (not including inherited)

	visited  map[string]bool
	visiting map[string]bool

	// forceMethod overrides method selection for one specific tool id,
	// used by the failure analyzer's switch_method remediation to
	// re-resolve a single tool under a different method without
	// disturbing how the rest of the dependency tree is resolved.
	forceMethod map[string]string
}

// collect recurses into r's requires.binaries before emitting r's own
// tool step, giving the leaves-first ordering plan assembly needs.
func (c *collector) collect(toolID string, r *recipe.Recipe) error {
	if c.visiting[toolID] {
		return perr.New(perr.KindDependencyCycle, "resolver", fmt.Sprintf("dependency cycle at %q", toolID)).
			WithContext("tool_id", toolID)
	}
	if c.visited[toolID] {
		return nil
	}
	c.visiting[toolID] = true
	defer func() { c.visiting[toolID] = false }()

	var inherited []string
	for _, dep := range r.Requires.Binaries {
		if profile.BinaryOnPath(dep) {
			continue
		}
		depRecipe, err := c.src.Get(dep)
		if err != nil {
			return perr.Wrap(perr.KindToolNotFound, "resolver", fmt.Sprintf("dependency %q of %q not found", dep, toolID), err).
				WithContext("tool_id", toolID).WithContext("dependency", dep)
		}
		if err := c.collect(dep, depRecipe); err != nil {
			return err
		}
		if env, ok := c.postEnvOf[dep]; ok && env != "" {
			inherited = append(inherited, env)
		}
		inherited = append(inherited, c.inheritedPostEnvOf(dep)...)
	}

	for family, pkgs := range r.Requires.Packages {
		c.packages[family] = append(c.packages[family], pkgs...)
	}

	if !installable(r) {
		c.visited[toolID] = true
		return nil
	}

	var method string
	if forced, ok := c.forceMethod[toolID]; ok {
		if _, declared := r.Install[forced]; !declared {
			return perr.New(perr.KindNoSelectableMethod, "resolver", fmt.Sprintf("tool %q has no %q install method to switch to", toolID, forced)).
				WithContext("tool_id", toolID).WithContext("forced_method", forced)
		}
		method = forced
	} else {
		var err error
		method, err = selectMethod(r, c.sp)
		if err != nil {
			return err
		}
	}

	if steps, ok := r.RepoSetup[method]; ok {
		for _, s := range steps {
			c.repoSetup = append(c.repoSetup, repoSetupStep{
				Label:     s.Label,
				Command:   s.Command,
				Env:       s.Env,
				NeedsSudo: s.NeedsSudo,
				TimeoutMS: s.TimeoutMS,
				Metadata:  s.Metadata,
			})
		}
	}

	needsSudo := r.NeedsSudo[method]
	c.toolSteps = append(c.toolSteps, toolStep{
		toolID:           toolID,
		method:           method,
		command:          []string{"bash", "-c", r.Install[method]},
		needsSudo:        needsSudo,
		inheritedPostEnv: dedupeStrings(inherited),
	})

	if c.postEnvOf == nil {
		c.postEnvOf = make(map[string]string)
	}
	c.postEnvOf[toolID] = r.PostEnv

	c.visited[toolID] = true
	return nil
}

// inheritedPostEnvOf returns the post_env fragments dep itself
// inherited from its own transitive dependencies, so a grandchild's
// exports propagate all the way up the chain.
func (c *collector) inheritedPostEnvOf(dep string) []string {
	for _, ts := range c.toolSteps {
		if ts.toolID == dep {
			return ts.inheritedPostEnv
		}
	}
	return nil
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
