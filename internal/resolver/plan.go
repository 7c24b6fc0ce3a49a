// Package resolver implements the recipe resolver (C3): method
// selection, dependency-tree DFS collection, choice splicing, and the
// fixed-order plan assembly from §4.3.
package resolver

// Step is one node of an assembled Plan, distinct from recipe.Step
// (the declarative per-entry action a recipe's TOML declares): a Step
// here has been resolved to a concrete id and DAG position.
type Step struct {
	ID        string
	Type      string // one of the 15 kinds from §4.5
	Label     string
	Command   []string
	Env       map[string]string
	// PostEnv is the ordered list of post_env shell fragments inherited
	// from this step's transitive dependencies (leaf-first), which the
	// executor sources before running Command so e.g. a just-installed
	// cargo is on PATH without a shell restart.
	PostEnv   []string
	NeedsSudo bool
	DependsOn []string
	TimeoutMS int
	Batchable bool
	Metadata  map[string]any
}

// Plan is the ordered, fully-resolved installation plan for one tool.
type Plan struct {
	ToolID           string
	Steps            []Step
	NeedsSudo        bool // true if any step needs sudo
	AlreadyInstalled bool
}
