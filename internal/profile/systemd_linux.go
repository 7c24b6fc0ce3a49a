package profile

import "os"

// HasSystemd reports whether the host is running under systemd as
// PID 1. This mirrors systemd's own sd_booted(3) check: /run/systemd/system
// only exists when systemd itself created it at boot, which is also true
// inside systemd-managed containers and false in chroots, OpenRC/runit
// systems, and most Docker/Podman containers.
//
// This is a file stat, not a D-Bus round trip, so it stays well inside
// the fast tier's budget. The service step executor additionally
// establishes a D-Bus connection (github.com/coreos/go-systemd/v22/dbus)
// when it actually needs to start or enable a unit, and degrades to the
// OpenRC path if that connection fails even when this check said true.
func HasSystemd() bool {
	return HasSystemdWithRoot("")
}

// HasSystemdWithRoot is HasSystemd with a custom root for testing.
func HasSystemdWithRoot(root string) bool {
	path := root + "/run/systemd/system"
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
