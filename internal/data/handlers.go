package data

import "github.com/tsukumogami/provisor/internal/recipe"

// InfraHandlers apply to every step regardless of method, matched
// last (after a tool's own on_failure and its method family) per
// §3.6's match order. Nine handlers: network, disk full, permissions,
// OOM, read-only rootfs, package-manager lock, missing binary, TLS and
// I/O errors, the generic catch-alls a recipe author never has to
// declare themselves. There is no handler for step timeouts.
var InfraHandlers = []recipe.Handler{
	{
		Pattern:     `(?i)(could not resolve host|network is unreachable|connection timed out|temporary failure in name resolution)`,
		FailureID:   "infra.network_unreachable",
		Category:    "network",
		Label:       "Network unreachable",
		Description: "the step could not reach the network",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyCleanupRetry, Label: "Retry", Commands: nil},
		},
	},
	{
		Pattern:     `(?i)(no space left on device|disk quota exceeded)`,
		FailureID:   "infra.disk_full",
		Category:    "environment",
		Label:       "Disk full",
		Description: "the install root ran out of space",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyCleanupRetry, Label: "Clean package caches and retry", Commands: []string{"apt-get clean", "dnf clean all", "rm -rf /tmp/provisor-*"}},
			{Strategy: recipe.StrategyManual, Label: "Free disk space manually", Message: "free space on the install target and retry"},
		},
	},
	{
		Pattern:     `(?i)(permission denied|operation not permitted|eacces)`,
		FailureID:   "infra.permission_denied",
		Category:    "permissions",
		Label:       "Permission denied",
		Description: "the step lacked permission to write or execute",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyRetryWithModifier, Label: "Retry with sudo", Args: nil},
			{Strategy: recipe.StrategyManual, Label: "Fix ownership manually", Message: "check file ownership and permissions on the target path"},
		},
	},
	{
		Pattern:     `(?i)(out of memory|cannot allocate memory|killed.*signal 9|oom.?killer)`,
		FailureID:   "infra.out_of_memory",
		Category:    "environment",
		Label:       "Out of memory",
		Description: "the step's process was killed for exceeding available memory",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyEnvFix, Label: "Reduce parallelism and retry", Env: map[string]string{"MAKEFLAGS": "-j1", "CARGO_BUILD_JOBS": "1"}},
			{Strategy: recipe.StrategyManual, Label: "Add swap or use a larger machine", Message: "the host does not have enough memory for this build"},
		},
	},
	{
		Pattern:     `(?i)(read-only file system)`,
		FailureID:   "infra.readonly_rootfs",
		Category:    "environment",
		Label:       "Read-only filesystem",
		Description: "the install root is mounted read-only",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyManual, Label: "Remount writable", Message: "remount the filesystem read-write, or install under $HOME instead"},
		},
	},
	{
		Pattern:     `(?i)(dpkg.*lock|could not get lock.*dpkg|unable to acquire the dpkg frontend lock)`,
		FailureID:   "infra.package_manager_locked",
		Category:    "environment",
		Label:       "Package manager locked",
		Description: "another process holds the package manager's lock",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyCleanupRetry, Label: "Wait and retry", Commands: nil},
			{Strategy: recipe.StrategyManual, Label: "Find and stop the other process", Message: "run `ps aux | grep apt` to find the process holding the lock"},
		},
	},
	{
		Pattern:     `(?i)(command not found|no such file or directory: .*(bin|cmd))`,
		FailureID:   "infra.binary_missing",
		Category:    "dependency",
		Label:       "Required binary missing",
		Description: "a binary the step invoked is not on PATH",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyEnvFix, Label: "Re-source shell profile and retry", Commands: nil},
		},
	},
	{
		Pattern:     `(?i)(certificate.*(expired|verify failed)|ssl.*handshake failure|x509)`,
		FailureID:   "infra.tls_error",
		Category:    "network",
		Label:       "TLS verification failed",
		Description: "a download or repo fetch failed certificate verification",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyEnvFix, Label: "Update CA certificates and retry", Commands: []string{"update-ca-certificates"}},
		},
	},
	{
		Pattern:     `(?i)(input/output error|device or resource busy)`,
		FailureID:   "infra.io_error",
		Category:    "environment",
		Label:       "I/O error",
		Description: "a filesystem or device error interrupted the step",
		Options: []recipe.Option{
			{Strategy: recipe.StrategyCleanupRetry, Label: "Retry", Commands: nil},
		},
	},
}

// MethodFamilyHandlers are matched after a tool's own on_failure but
// before InfraHandlers, keyed by install method. A step's method
// family is whichever key of recipe.Install it was resolved to run.
var MethodFamilyHandlers = map[string][]recipe.Handler{
	"pip": {
		{
			Pattern:     `(?i)externally-managed-environment`,
			FailureID:   "pip.pep668_blocked",
			Category:    "environment",
			Label:       "PEP 668 externally-managed environment",
			Description: "the system Python refuses package installs outside a virtualenv or pipx",
			Options: []recipe.Option{
				{Strategy: recipe.StrategySwitchMethod, Label: "Install with pipx instead", Method: "pipx", Gate: recipe.GateSpec{Type: "language_pm", Method: "pipx"}},
				{Strategy: recipe.StrategyRetryWithModifier, Label: "Retry with --break-system-packages", Args: []string{"--break-system-packages"}},
			},
		},
	},
	"cargo": {
		{
			Pattern:     `(?i)(requires rustc .* or newer|package .* cannot be built.*rustc)`,
			FailureID:   "cargo.rustc_too_old",
			Category:    "compiler",
			Label:       "rustc is too old for this crate",
			Description: "the installed Rust toolchain predates the crate's minimum supported version",
			Options: []recipe.Option{
				{Strategy: recipe.StrategyInstallDep, Label: "Update the Rust toolchain via rustup", Dep: "rustup"},
			},
		},
	},
	"apt": {
		{
			Pattern:     `(?i)unable to locate package`,
			FailureID:   "apt.package_not_found",
			Category:    "dependency",
			Label:       "Package not found in configured repositories",
			Description: "apt's package index does not know this package name",
			Options: []recipe.Option{
				{Strategy: recipe.StrategyEnvFix, Label: "Update package index and retry", Commands: []string{"apt-get update"}},
			},
		},
	},
	"npm": {
		{
			Pattern:     `(?i)eacces.*npm`,
			FailureID:   "npm.global_install_permission",
			Category:    "permissions",
			Label:       "npm global install lacks permission",
			Description: "the global npm prefix is not writable by the current user",
			Options: []recipe.Option{
				{Strategy: recipe.StrategyEnvFix, Label: "Use a user-owned npm prefix", Commands: []string{"npm config set prefix ~/.npm-global"}},
			},
		},
	},
	"go": {
		{
			Pattern:     `(?i)go\.mod file not found`,
			FailureID:   "go.outside_module",
			Category:    "configuration",
			Label:       "go install run outside a module",
			Description: "go install needs a version suffix when not run inside a module",
			Options: []recipe.Option{
				{Strategy: recipe.StrategyRetryWithModifier, Label: "Retry with @latest suffix", Args: []string{"@latest"}},
			},
		},
	},
}

// RestartTriggers maps a recipe's restart_required value to the
// user-facing consequence, used when rendering post-install guidance.
var RestartTriggers = map[string]string{
	"none":    "",
	"shell":   "restart your shell or run `exec $SHELL` for PATH changes to take effect",
	"session": "log out and back in for group membership changes to take effect",
	"system":  "reboot for the change to take effect",
}
