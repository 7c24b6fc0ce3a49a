package recipe

import "fmt"

// knownFamilies are the distro families requires.packages and
// install/needs_sudo family-keyed maps may reference.
var knownFamilies = map[string]bool{
	"debian": true,
	"rhel":   true,
	"alpine": true,
	"arch":   true,
	"suse":   true,
	"macos":  true,
}

// knownMethods are the method keys install/needs_sudo/prefer/repo_setup
// may use.
var knownMethods = map[string]bool{
	"apt": true, "dnf": true, "yum": true, "apk": true, "pacman": true,
	"zypper": true, "brew": true, "snap": true, "pip": true, "pipx": true,
	"npm": true, "cargo": true, "go": true, "source": true, "_default": true,
}

var knownRisks = map[string]bool{"low": true, "medium": true, "high": true}

var knownRestarts = map[string]bool{"none": true, "shell": true, "session": true, "system": true}

// ValidationError reports one schema violation, naming the offending
// field so loader failures point straight at the bad recipe.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a parsed recipe against every §3.1 invariant. It
// does not consult the recipe registry, so requires.binaries entries
// are only checked for shape (non-empty), not resolvability. Loading
// emits no warning for a dangling binaries reference; the resolver
// fails with ToolNotFound when it reaches that dependency and the
// binary is not already on PATH.
func Validate(r *Recipe) []ValidationError {
	var errs []ValidationError

	for method := range r.Install {
		if !knownMethods[method] {
			errs = append(errs, ValidationError{Field: "install", Message: fmt.Sprintf("unknown method key %q", method)})
		}
		if _, ok := r.NeedsSudo[method]; !ok {
			errs = append(errs, ValidationError{Field: "needs_sudo", Message: fmt.Sprintf("missing entry for install method %q", method)})
		}
	}

	for _, method := range r.Prefer {
		if _, ok := r.Install[method]; !ok {
			errs = append(errs, ValidationError{Field: "prefer", Message: fmt.Sprintf("method %q not present in install", method)})
		}
	}

	for method := range r.RepoSetup {
		if _, ok := r.Install[method]; !ok {
			errs = append(errs, ValidationError{Field: "repo_setup", Message: fmt.Sprintf("method %q not present in install", method)})
		}
	}

	for family := range r.Requires.Packages {
		if !knownFamilies[family] {
			errs = append(errs, ValidationError{Field: "requires.packages", Message: fmt.Sprintf("unknown distro family %q", family)})
		}
	}

	for _, bin := range r.Requires.Binaries {
		if bin == "" {
			errs = append(errs, ValidationError{Field: "requires.binaries", Message: "entry must not be empty"})
		}
	}

	if r.Risk != "" && !knownRisks[r.Risk] {
		errs = append(errs, ValidationError{Field: "risk", Message: fmt.Sprintf("invalid risk %q (want low|medium|high)", r.Risk)})
	}
	if r.RestartRequired != "" && !knownRestarts[r.RestartRequired] {
		errs = append(errs, ValidationError{Field: "restart_required", Message: fmt.Sprintf("invalid restart_required %q", r.RestartRequired)})
	}

	for i, h := range r.OnFailure {
		if h.Pattern == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("on_failure[%d].pattern", i), Message: "pattern is required"})
		}
		if len(h.Options) == 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("on_failure[%d].options", i), Message: "at least one option is required"})
		}
		for j, opt := range h.Options {
			if !validStrategy(opt.Strategy) {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("on_failure[%d].options[%d].strategy", i, j), Message: fmt.Sprintf("unknown strategy %q", opt.Strategy)})
			}
		}
	}

	for i, c := range r.Choices {
		if c.ID == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("choices[%d].id", i), Message: "id is required"})
		}
		if len(c.Options) == 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("choices[%d].options", i), Message: "at least one option is required"})
		}
		recommended := 0
		for _, opt := range c.Options {
			if opt.Recommended {
				recommended++
			}
		}
		if recommended > 1 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("choices[%d].options", i), Message: "at most one option may be recommended"})
		}
	}

	if installable(r) && r.Verify == "" {
		errs = append(errs, ValidationError{Field: "verify", Message: "command is required for installable tools"})
	}

	return errs
}

func validStrategy(s Strategy) bool {
	switch s {
	case StrategyInstallDep, StrategySwitchMethod, StrategyRetryWithModifier,
		StrategyInstallPackages, StrategyEnvFix, StrategyManual, StrategyCleanupRetry:
		return true
	default:
		return false
	}
}

// installable reports whether a recipe declares any install method.
// Tools with none are config presets (§3.1) and skip the verify
// requirement.
func installable(r *Recipe) bool {
	return len(r.Install) > 0
}
