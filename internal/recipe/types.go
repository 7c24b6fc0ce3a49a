// Package recipe defines the declarative recipe schema (§3.1), loads
// recipes from TOML files, and validates them against the schema's
// invariants at load time.
package recipe

// Recipe is a declarative install specification keyed by tool id (the
// TOML filename, minus extension, is the tool id).
type Recipe struct {
	Description string `toml:"description"`
	Homepage    string `toml:"homepage,omitempty"`

	// Install maps method key to command template. Method keys are
	// drawn from {apt, dnf, yum, apk, pacman, zypper, brew, snap, pip,
	// pipx, npm, cargo, go, source, _default}. Tools flagged
	// "not installable" (config presets) omit this entirely.
	Install map[string]string `toml:"install,omitempty"`

	// NeedsSudo must have an entry for every key in Install, plus
	// optionally entries for post-install subphases (e.g. "post_install").
	NeedsSudo map[string]bool `toml:"needs_sudo,omitempty"`

	Requires Requires `toml:"requires"`

	// Prefer is an ordered list of method keys, a per-recipe ordering
	// hint consulted before the profile's primary_pm.
	Prefer []string `toml:"prefer,omitempty"`

	// RepoSetup maps method key to an ordered list of pre-install
	// steps (add PPA, import GPG key, …).
	RepoSetup map[string][]Step `toml:"repo_setup,omitempty"`

	PostInstall []Step `toml:"post_install,omitempty"`

	// PostEnv is a shell fragment exporting environment (PATH, etc.)
	// that subsequent steps in the same plan need.
	PostEnv string `toml:"post_env,omitempty"`

	// Verify is a command whose exit 0 confirms the install succeeded.
	Verify string `toml:"verify"`

	// Update and Rollback mirror Install, for in-place upgrade and
	// uninstall respectively.
	Update   map[string]string `toml:"update,omitempty"`
	Rollback map[string]string `toml:"rollback,omitempty"`

	Risk             string `toml:"risk"`              // low|medium|high
	RestartRequired  string `toml:"restart_required"`  // none|shell|session|system

	OnFailure []Handler `toml:"on_failure,omitempty"`
	Choices   []Choice  `toml:"choices,omitempty"`
}

// Requires lists a recipe's dependencies.
type Requires struct {
	// Binaries are other recipe ids (transitive dep edges), resolved
	// at plan time: a binary already on PATH short-circuits the edge.
	Binaries []string `toml:"binaries,omitempty"`

	// Packages maps distro family to OS package names needed directly
	// by this tool (not via a dependency recipe).
	Packages map[string][]string `toml:"packages,omitempty"`

	// Toolchain names a source-build prerequisite gate (e.g. "cc"),
	// consulted by the source-toolchain availability gate (§3.5).
	Toolchain string `toml:"toolchain,omitempty"`
}

// Step is one pre/post-install action. The resolver assembles Steps
// into a Plan's ordered step list (§3.3); most Step fields here carry
// straight through, Command is expanded from a template into argv.
type Step struct {
	Type       string            `toml:"type"`
	Label      string            `toml:"label,omitempty"`
	Command    []string          `toml:"command,omitempty"`
	Env        map[string]string `toml:"env,omitempty"`
	NeedsSudo  bool              `toml:"needs_sudo,omitempty"`
	DependsOn  []string          `toml:"depends_on,omitempty"`
	TimeoutMS  int               `toml:"timeout_ms,omitempty"`
	Batchable  bool              `toml:"batchable,omitempty"`
	Metadata   map[string]any    `toml:"metadata,omitempty"`
}

// Handler is a failure handler (§3.6): a stderr pattern that, when
// matched, surfaces a set of ranked remediation Options.
type Handler struct {
	Pattern        string   `toml:"pattern"`
	FailureID      string   `toml:"failure_id"`
	Category       string   `toml:"category"` // environment|dependency|permissions|compiler|network|configuration
	Label          string   `toml:"label"`
	Description    string   `toml:"description"`
	ExampleStderr  string   `toml:"example_stderr,omitempty"`
	Options        []Option `toml:"options"`
}

// Strategy is one of the seven remediation strategies §4.8 defines
// execution semantics for.
type Strategy string

const (
	StrategyInstallDep         Strategy = "install_dep"
	StrategySwitchMethod       Strategy = "switch_method"
	StrategyRetryWithModifier  Strategy = "retry_with_modifier"
	StrategyInstallPackages    Strategy = "install_packages"
	StrategyEnvFix             Strategy = "env_fix"
	StrategyManual             Strategy = "manual"
	StrategyCleanupRetry       Strategy = "cleanup_retry"
)

// Option is one remediation option under a Handler. Only the fields a
// given Strategy consults are expected to be populated; the rest are
// left zero.
type Option struct {
	Strategy Strategy `toml:"strategy"`
	Label    string   `toml:"label"`

	Dep      string            `toml:"dep,omitempty"`      // install_dep
	Method   string            `toml:"method,omitempty"`   // switch_method
	Args     []string          `toml:"args,omitempty"`     // retry_with_modifier
	Env      map[string]string `toml:"env,omitempty"`      // retry_with_modifier / env_fix
	Packages map[string][]string `toml:"packages,omitempty"` // install_packages, per family
	Commands []string          `toml:"commands,omitempty"` // env_fix / cleanup_retry
	Message  string            `toml:"message,omitempty"`  // manual

	// Gate is the same §3.5 precondition mechanism ChoiceOption uses,
	// consulted by the failure analyzer (C8) to rank this option
	// ready/locked/impossible instead of always assuming ready. Zero
	// value means always ready (most strategies don't need one: sudo
	// retries and cleanup commands have no precondition).
	Gate GateSpec `toml:"gate,omitempty"`

	Available      bool   `toml:"-"`
	DisabledReason string `toml:"-"`
	EnableHint     string `toml:"-"`
}

// Choice is a question a recipe's resolver poses when more than one
// install strategy exists (e.g. pytorch's CUDA/ROCm/CPU backend).
type Choice struct {
	ID                    string         `toml:"id"`
	Label                 string         `toml:"label"`
	Options               []ChoiceOption `toml:"options"`
	AutoSelectIfSingleton bool           `toml:"auto_select_if_singleton,omitempty"`
}

// ChoiceOption is one answer to a Choice. Availability and the two
// string fields below are filled in by the choice resolver (C4) from
// the system profile, not declared in the recipe TOML except for a
// handful of recipes that hardcode platform exclusions directly in
// PlanFragment metadata.
type ChoiceOption struct {
	ID           string       `toml:"id"`
	Label        string       `toml:"label"`
	PlanFragment PlanFragment `toml:"plan_fragment"`
	Recommended  bool         `toml:"recommended,omitempty"`

	// Gate declares what this option needs to be ready, consulted by
	// the choice resolver (C4) against the system profile. Zero value
	// (empty Type) means "always available" (e.g. a CPU-only option).
	Gate GateSpec `toml:"gate,omitempty"`

	Available      bool   `toml:"-"`
	DisabledReason string `toml:"-"`
	EnableHint     string `toml:"-"`
}

// GateSpec declares an availability precondition for a ChoiceOption or
// remediation Option, per the gate types §3.5 names plus two
// domain-specific extensions (gpu_vendor, cuda_driver) this module
// adds to gate pytorch's CUDA/ROCm/CPU backend choice.
type GateSpec struct {
	Type string `toml:"type,omitempty"` // native_pm|installable_pm|language_pm|source_toolchain|writable_root|gpu_vendor|cuda_driver

	Method string `toml:"method,omitempty"` // native_pm/installable_pm/language_pm: method key (apt, brew, snap, pip, npm, cargo, go)

	GPUVendor  string `toml:"gpu_vendor,omitempty"`  // gpu_vendor: nvidia|amd|intel
	CUDAVersion string `toml:"cuda_version,omitempty"` // cuda_driver: CUDA version to check the installed driver against
}

// PlanFragment is spliced into the assembled plan when its owning
// ChoiceOption is selected. Position controls whether its Steps land
// immediately before or after the primary install step.
type PlanFragment struct {
	Position string            `toml:"position"` // "before_install"|"after_install"
	Steps    []Step            `toml:"steps,omitempty"`
	Env      map[string]string `toml:"env,omitempty"`
}
