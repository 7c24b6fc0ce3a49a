package profile

import (
	"syscall"
	"unsafe"
)

// detectDiskFree returns the free byte count on the volume holding
// path, via GetDiskFreeSpaceExW.
func detectDiskFree(path string) uint64 {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	proc := kernel32.NewProc("GetDiskFreeSpaceExW")

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}

	var freeBytesAvailable uint64
	ret, _, _ := proc.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		0,
		0,
	)
	if ret == 0 {
		return 0
	}
	return freeBytesAvailable
}
