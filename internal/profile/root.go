//go:build !windows

package profile

import "os"

// IsRoot reports whether the process is running as the root user
// (effective UID 0). Windows has no equivalent uid model; see
// root_windows.go.
func IsRoot() bool {
	return os.Geteuid() == 0
}
