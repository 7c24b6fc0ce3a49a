//go:build linux || darwin

package profile

import "golang.org/x/sys/unix"

// detectDiskFree returns the free byte count on the filesystem holding
// path, or 0 if it cannot be determined.
func detectDiskFree(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}
