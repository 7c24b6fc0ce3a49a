// Package profile implements the system profiler (C2): fast-tier
// detection of the host's OS, distro, package manager landscape and
// permission posture, plus lazily-cached deep-tier capability probes
// (GPU, CUDA, kernel, disk, compilers).
//
// Fast-tier detection is built to run in well under the profiler's
// 200ms budget: every probe here is a stat, a glob, or a PATH lookup,
// never a subprocess invocation.
package profile

import (
	"os/exec"
	"runtime"
)

// SystemProfile is the result of fast-tier detection, per the data
// model's System Profile type.
type SystemProfile struct {
	OS               string // linux|macos|windows
	Distro           string // ubuntu, fedora, alpine, arch, opensuse, macos, ...
	DistroFamily     string // debian|rhel|alpine|arch|suse|macos
	DistroVersion    string
	Arch             string // normalized: x86_64|aarch64|armv7l|...
	PrimaryPM        string // apt|dnf|yum|apk|pacman|zypper|brew, empty if none
	SnapAvailable    bool
	HasSystemd       bool
	InContainer      bool
	WritableRootfs   bool
	IsRoot           bool
	PMBinariesOnPath []string
}

// macOS package managers map straight to the "macos" family; there is
// no distro concept there, so Detect sets Distro to the family name
// and leaves DistroVersion empty.
var osToFamily = map[string]string{
	"darwin": "macos",
}

// Detect runs the full fast-tier profile for the current host.
func Detect() (SystemProfile, error) {
	p := SystemProfile{
		OS:   normalizeOS(runtime.GOOS),
		Arch: normalizeArch(runtime.GOARCH),
	}

	if runtime.GOOS == "linux" {
		target, err := DetectTarget()
		if err != nil {
			return SystemProfile{}, err
		}
		p.DistroFamily = target.LinuxFamily()

		osRelease, err := ParseOSRelease("/etc/os-release")
		if err == nil {
			p.Distro = osRelease.ID
			p.DistroVersion = osRelease.VersionID
		}
	} else if family, ok := osToFamily[runtime.GOOS]; ok {
		p.DistroFamily = family
		p.Distro = family
	}

	p.PrimaryPM = detectPrimaryPM(p.DistroFamily)
	p.PMBinariesOnPath = detectPMBinariesOnPath()
	p.SnapAvailable = binaryOnPath("snap")
	p.HasSystemd = HasSystemd()
	p.InContainer = InContainer()
	p.WritableRootfs = WritableRootfs()
	p.IsRoot = IsRoot()

	return p, nil
}

// normalizeOS maps runtime.GOOS to the profile's os vocabulary.
func normalizeOS(goos string) string {
	switch goos {
	case "darwin":
		return "macos"
	default:
		return goos
	}
}

// archAliases maps runtime.GOARCH to the normalized arch strings used
// throughout recipes (uname-style names rather than Go's).
var archAliases = map[string]string{
	"amd64": "x86_64",
	"386":   "i686",
	"arm64": "aarch64",
	"arm":   "armv7l",
}

// normalizeArch converts Go's GOARCH into the uname-style string
// recipes key `requires.packages`-adjacent arch conditionals on.
func normalizeArch(goarch string) string {
	if alias, ok := archAliases[goarch]; ok {
		return alias
	}
	return goarch
}

// binaryOnPath reports whether name resolves via $PATH. A package-level
// var so tests can fake the lookup without mutating $PATH.
var binaryOnPath = func(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// BinaryOnPath reports whether name resolves via $PATH. Exported for
// the resolver's "is this dependency already satisfied" check (§4.3)
// and the step executor's toolchain probes.
func BinaryOnPath(name string) bool {
	return binaryOnPath(name)
}
