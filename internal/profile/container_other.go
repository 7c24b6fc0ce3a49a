//go:build !linux

package profile

// InContainer is always false outside Linux; macOS and Windows builds
// run on the host directly (Docker Desktop runs the daemon in a Linux
// VM, which the profiler never runs inside).
func InContainer() bool {
	return false
}

// InContainerWithRoot exists for API parity with the Linux build.
func InContainerWithRoot(_ string) bool {
	return false
}
