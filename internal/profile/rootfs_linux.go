package profile

import "golang.org/x/sys/unix"

// WritableRootfs reports whether the root filesystem is mounted
// read-write. Some minimal/immutable container bases (distroless,
// read-only root Kubernetes pods) mount "/" read-only, which makes
// install_packages steps impossible regardless of which package
// manager is present.
func WritableRootfs() bool {
	return WritableRootfsWithPath("/")
}

// WritableRootfsWithPath is WritableRootfs against an arbitrary mount
// point, for testing against a tmpfs/bind mount instead of the real "/".
func WritableRootfsWithPath(path string) bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		// Can't determine; assume writable rather than block installs
		// on an inconclusive probe.
		return true
	}
	return stat.Flags&unix.ST_RDONLY == 0
}
