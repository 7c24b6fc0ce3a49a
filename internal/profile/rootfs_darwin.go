package profile

import "golang.org/x/sys/unix"

// WritableRootfs reports whether the root filesystem is mounted
// read-write. See rootfs_linux.go for the rationale.
func WritableRootfs() bool {
	return WritableRootfsWithPath("/")
}

// WritableRootfsWithPath is WritableRootfs against an arbitrary mount point.
func WritableRootfsWithPath(path string) bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return true
	}
	return stat.Flags&unix.MNT_RDONLY == 0
}
