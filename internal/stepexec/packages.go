package stepexec

import "fmt"

// familyInstallArgv maps a distro family to the argv prefix its native
// package manager uses for a non-interactive batch install, mirroring
// the method keys internal/resolver selects against.
var familyInstallArgv = map[string][]string{
	"debian": {"apt-get", "install", "-y"},
	"rhel":   {"dnf", "install", "-y"},
	"alpine": {"apk", "add"},
	"arch":   {"pacman", "-S", "--noconfirm"},
	"suse":   {"zypper", "install", "-y"},
	"macos":  {"brew", "install"},
}

// packageInstallCommand builds the batched install argv for family,
// per §4.5's "packages" step effect.
func packageInstallCommand(family string, pkgs []string) ([]string, error) {
	prefix, ok := familyInstallArgv[family]
	if !ok {
		return nil, fmt.Errorf("stepexec: no package manager known for family %q", family)
	}
	argv := make([]string, 0, len(prefix)+len(pkgs))
	argv = append(argv, prefix...)
	argv = append(argv, pkgs...)
	return argv, nil
}
