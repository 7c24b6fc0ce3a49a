// Package choice implements the choice resolver (C4): for every choice
// a recipe declares, it evaluates each option's availability gate
// against the system profile and fills in disabled_reason/enable_hint
// for the ones that aren't ready, per §4.4's "never hide options"
// invariant.
package choice

import (
	"fmt"

	"github.com/tsukumogami/provisor/internal/data"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/recipe"
)

// Gate is the §3.5 three-way availability taxonomy.
type Gate string

const (
	GateReady      Gate = "ready"
	GateLocked     Gate = "locked"
	GateImpossible Gate = "impossible"
)

// Resolve evaluates every choice in r against sp (and, when a gate
// needs it, dp) and returns the full option list with Available/
// DisabledReason/EnableHint populated. It never drops an option.
func Resolve(r *recipe.Recipe, sp profile.SystemProfile, dp profile.DeepProfile) []recipe.Choice {
	choices := make([]recipe.Choice, len(r.Choices))
	for i, c := range r.Choices {
		choices[i] = resolveOne(c, sp, dp)
	}
	return choices
}

func resolveOne(c recipe.Choice, sp profile.SystemProfile, dp profile.DeepProfile) recipe.Choice {
	opts := make([]recipe.ChoiceOption, len(c.Options))
	available := 0
	var onlyAvailable int = -1
	for i, o := range c.Options {
		gate, reason, hint := evaluateGate(o.Gate, sp, dp)
		o.Available = gate == GateReady
		o.DisabledReason = reason
		o.EnableHint = hint
		if o.Available {
			available++
			onlyAvailable = i
		}
		opts[i] = o
	}

	if c.AutoSelectIfSingleton && available == 1 {
		opts[onlyAvailable].Recommended = true
	}

	c.Options = opts
	return c
}

// EvaluateGate computes the §3.5 availability taxonomy for one gate
// spec against a system/deep profile. Exported so the failure analyzer
// (C8) can rank remediation Option availability with the exact same
// gate logic ChoiceOption resolution uses, rather than duplicating it.
func EvaluateGate(g recipe.GateSpec, sp profile.SystemProfile, dp profile.DeepProfile) (gate Gate, reason, hint string) {
	return evaluateGate(g, sp, dp)
}

// evaluateGate computes the §3.5 taxonomy for one gate spec. A zero
// GateSpec (Type == "") is always ready — the option has no
// precondition (e.g. a CPU-only backend, or a step that needs nothing
// beyond the primary install method already selected).
func evaluateGate(g recipe.GateSpec, sp profile.SystemProfile, dp profile.DeepProfile) (gate Gate, reason, hint string) {
	switch g.Type {
	case "":
		return GateReady, "", ""

	case "native_pm":
		if sp.PrimaryPM == g.Method {
			return GateReady, "", ""
		}
		return GateImpossible, fmt.Sprintf("%s is not this system's native package manager", g.Method), ""

	case "installable_pm":
		switch g.Method {
		case "brew":
			if contains(sp.PMBinariesOnPath, "brew") {
				return GateReady, "", ""
			}
			if sp.OS == "macos" || sp.OS == "linux" {
				return GateLocked, "Homebrew is not installed", "install Homebrew first (https://brew.sh)"
			}
			return GateImpossible, "Homebrew is not supported on this OS", ""
		case "snap":
			if !sp.HasSystemd {
				return GateImpossible, "snap requires systemd, which this system does not have", ""
			}
			if sp.SnapAvailable {
				return GateReady, "", ""
			}
			return GateLocked, "snapd is not installed", "install snapd first"
		default:
			return GateImpossible, fmt.Sprintf("unknown installable package manager %q", g.Method), ""
		}

	case "language_pm":
		if contains(sp.PMBinariesOnPath, g.Method) {
			return GateReady, "", ""
		}
		return GateLocked, fmt.Sprintf("%s is not on PATH", g.Method), fmt.Sprintf("install %s first", g.Method)

	case "source_toolchain":
		if dp.CompilerOnPath["gcc"] || dp.CompilerOnPath["clang"] || dp.CompilerOnPath["cc"] {
			return GateReady, "", ""
		}
		return GateLocked, "no C compiler is on PATH", "install build-essential (or your distro's C toolchain)"

	case "writable_root":
		if sp.WritableRootfs {
			return GateReady, "", ""
		}
		return GateImpossible, "the root filesystem is mounted read-only", ""

	case "gpu_vendor":
		if dp.GPU == g.GPUVendor {
			return GateReady, "", ""
		}
		return GateImpossible, fmt.Sprintf("no %s GPU detected", g.GPUVendor), ""

	case "cuda_driver":
		if dp.GPU != "nvidia" {
			return GateImpossible, "no NVIDIA GPU detected", ""
		}
		if dp.DriverVersion == "" {
			return GateLocked, "no NVIDIA driver installed", "install the nvidia-driver recipe first"
		}
		if data.DriverSatisfiesCUDA(dp.DriverVersion, g.CUDAVersion) {
			return GateReady, "", ""
		}
		return GateLocked, fmt.Sprintf("installed driver %s is too old for CUDA %s", dp.DriverVersion, g.CUDAVersion), "upgrade the nvidia-driver recipe"

	default:
		return GateImpossible, fmt.Sprintf("unknown gate type %q", g.Type), ""
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
