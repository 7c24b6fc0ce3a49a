package data

import "github.com/Masterminds/semver/v3"

// CUDACompat is one row of the CUDA-toolkit-to-minimum-driver-version
// compatibility matrix NVIDIA publishes alongside each CUDA release.
// The choice resolver uses this to decide whether the "CUDA" pytorch
// option is merely unavailable (no NVIDIA GPU) or locked (GPU present,
// but the installed driver is too old for the CUDA build being offered).
type CUDACompat struct {
	CUDAVersion    string // e.g. "12.4"
	MinDriverLinux string // minimum NVIDIA driver version on Linux
}

// CUDADriverMatrix is NVIDIA's published minimum-driver table,
// condensed to the CUDA minor versions this module's recipes offer.
var CUDADriverMatrix = []CUDACompat{
	{CUDAVersion: "11.8", MinDriverLinux: "450.80.02"},
	{CUDAVersion: "12.1", MinDriverLinux: "530.30.02"},
	{CUDAVersion: "12.4", MinDriverLinux: "550.54.14"},
	{CUDAVersion: "12.6", MinDriverLinux: "560.28.03"},
}

// DriverSatisfiesCUDA reports whether an installed driver version meets
// the minimum a given CUDA release requires. Returns false (locked, not
// ready) if either version string fails to parse as semver, or if
// cudaVersion isn't in the matrix.
func DriverSatisfiesCUDA(driverVersion, cudaVersion string) bool {
	for _, row := range CUDADriverMatrix {
		if row.CUDAVersion != cudaVersion {
			continue
		}
		driver, err := semver.NewVersion(driverVersion)
		if err != nil {
			return false
		}
		min, err := semver.NewVersion(row.MinDriverLinux)
		if err != nil {
			return false
		}
		return !driver.LessThan(min)
	}
	return false
}

// LatestCUDAVersion returns the newest CUDA version this module offers
// recipes for.
func LatestCUDAVersion() string {
	return CUDADriverMatrix[len(CUDADriverMatrix)-1].CUDAVersion
}
