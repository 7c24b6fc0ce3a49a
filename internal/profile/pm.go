package profile

// familyPMs orders the native package manager binaries to probe for a
// given distro family, most to least likely to be the actual default.
var familyPMs = map[string][]string{
	"debian": {"apt", "apt-get"},
	"rhel":   {"dnf", "yum"},
	"arch":   {"pacman"},
	"alpine": {"apk"},
	"suse":   {"zypper"},
	"macos":  {"brew"},
}

// allPMBinaries lists every native package manager binary the profiler
// checks for, independent of the detected family.
var allPMBinaries = []string{"apt", "apt-get", "dnf", "yum", "apk", "pacman", "zypper", "brew"}

// detectPrimaryPM returns the first PM binary on PATH that matches the
// host's distro family, or "" if none is found (e.g. a minimal
// container missing its own package manager).
func detectPrimaryPM(family string) string {
	for _, bin := range familyPMs[family] {
		if binaryOnPath(bin) {
			return normalizePMName(bin)
		}
	}
	return ""
}

// normalizePMName collapses apt-get to apt; recipes key install maps
// by method name, not the literal binary invoked.
func normalizePMName(bin string) string {
	if bin == "apt-get" {
		return "apt"
	}
	return bin
}

// detectPMBinariesOnPath returns every known PM binary actually present
// on PATH, for informational use (e.g. a foreign PM installed inside a
// container for cross-compat).
func detectPMBinariesOnPath() []string {
	var found []string
	for _, bin := range allPMBinaries {
		if binaryOnPath(bin) {
			found = append(found, bin)
		}
	}
	return found
}
