// Package testutil provides shared test fixtures for package tests
// across the module: a scratch config rooted in a temp dir, and a
// minimal installable recipe for resolver/scheduler/executor tests
// that don't care about a specific tool's install commands.
package testutil

import (
	"os"
	"testing"

	"github.com/tsukumogami/provisor/internal/config"
	"github.com/tsukumogami/provisor/internal/recipe"
)

// TempDir creates a temporary directory and returns a cleanup function.
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "provisor-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

// NewTestConfig creates a Config rooted in a temp HomeDir, with every
// directory EnsureDirectories would create already present.
func NewTestConfig(t *testing.T) (*config.Config, func()) {
	t.Helper()
	tmpDir, cleanup := TempDir(t)

	cfg := &config.Config{
		HomeDir:      tmpDir,
		StateDir:     tmpDir + "/state",
		RecipesDir:   tmpDir + "/recipes",
		CacheDir:     tmpDir + "/cache",
		WorkerBudget: config.DefaultWorkerBudget,
		StepTimeout:  config.DefaultStepTimeout,
		PlanTimeout:  config.DefaultPlanTimeout,
	}

	if err := cfg.EnsureDirectories(); err != nil {
		cleanup()
		t.Fatalf("failed to create config directories: %v", err)
	}

	return cfg, cleanup
}

// NewTestRecipe returns a minimal single-method installable recipe,
// for tests that exercise the resolver/scheduler/executor plumbing
// rather than any specific tool's install semantics.
func NewTestRecipe(name string) *recipe.Recipe {
	return &recipe.Recipe{
		Description: "test recipe for " + name,
		Install: map[string]string{
			"_default": "echo installing " + name,
		},
		NeedsSudo: map[string]bool{
			"_default": false,
		},
		Verify: "echo verified",
	}
}

// NewTestRecipeWithDeps returns NewTestRecipe with the given tool ids
// wired in as requires.binaries edges.
func NewTestRecipeWithDeps(name string, deps []string) *recipe.Recipe {
	r := NewTestRecipe(name)
	r.Requires.Binaries = deps
	return r
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AssertFileExists fails the test if path does not exist.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if !FileExists(path) {
		t.Errorf("file does not exist: %s", path)
	}
}

// AssertFileNotExists fails the test if path exists.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if FileExists(path) {
		t.Errorf("file should not exist: %s", path)
	}
}
