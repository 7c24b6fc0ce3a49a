package profile

import (
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// DeepProfile holds on-demand capability probes that are too slow, or
// too narrowly relevant, to run on every fast-tier Detect call.
type DeepProfile struct {
	GPU            string // nvidia|amd|intel|apple|none
	DriverVersion  string // installed NVIDIA driver version, e.g. "550.54.14"
	CUDAVersion    string // max CUDA version the installed driver supports, e.g. "12.4"
	KernelVersion  string
	DiskFreeBytes  uint64
	CompilerOnPath map[string]bool // gcc, clang, cc, make
}

// compilersChecked lists the toolchain binaries deep probing reports on.
var compilersChecked = []string{"gcc", "clang", "cc", "make"}

// Cache memoizes deep-tier probes for the lifetime of one engine
// session, per spec's "lazy, cached per session" contract. The zero
// value is ready to use.
type Cache struct {
	mu      sync.Mutex
	profile *DeepProfile
}

// Get returns the cached DeepProfile, probing the host on first call.
func (c *Cache) Get() DeepProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		p := detectDeep()
		c.profile = &p
	}
	return *c.profile
}

// Invalidate clears the cache, forcing the next Get to re-probe. The
// engine does not call it; a cached profile stays in place after steps
// that change the host's capabilities (e.g. an nvidia-driver install).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = nil
}

func detectDeep() DeepProfile {
	d := DeepProfile{
		GPU:            DetectGPU(),
		KernelVersion:  detectKernelVersion(),
		DiskFreeBytes:  detectDiskFree("/"),
		CompilerOnPath: make(map[string]bool, len(compilersChecked)),
	}
	if d.GPU == "nvidia" {
		d.DriverVersion, d.CUDAVersion = detectNvidiaSMI()
	}
	for _, c := range compilersChecked {
		d.CompilerOnPath[c] = binaryOnPath(c)
	}
	return d
}

// detectKernelVersion shells out to uname -r; there is no sysfs
// shortcut for this on every platform the profiler targets.
func detectKernelVersion() string {
	out, err := exec.Command("uname", "-r").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// nvidiaSMIVersionPattern matches the CUDA Version field in
// `nvidia-smi`'s header banner, e.g. "CUDA Version: 12.4".
var nvidiaSMIVersionPattern = regexp.MustCompile(`CUDA Version:\s*([0-9]+\.[0-9]+)`)

// nvidiaSMIDriverPattern matches the Driver Version field in the same
// banner, e.g. "Driver Version: 550.54.14".
var nvidiaSMIDriverPattern = regexp.MustCompile(`Driver Version:\s*([0-9.]+)`)

// detectNvidiaSMI shells out to nvidia-smi; this is a deep-tier probe
// specifically because it requires a subprocess and the driver may not
// be installed yet (the nvidia-driver recipe is what installs it). It
// returns the driver version and the max CUDA version that driver
// supports, both parsed from the same banner line.
func detectNvidiaSMI() (driverVersion, cudaVersion string) {
	out, err := exec.Command("nvidia-smi").Output()
	if err != nil {
		return "", ""
	}
	if m := nvidiaSMIDriverPattern.FindSubmatch(out); m != nil {
		driverVersion = string(m[1])
	}
	if m := nvidiaSMIVersionPattern.FindSubmatch(out); m != nil {
		cudaVersion = string(m[1])
	}
	return driverVersion, cudaVersion
}
