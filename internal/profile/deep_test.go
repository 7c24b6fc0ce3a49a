package profile

import "testing"

func TestDeepCache_MemoizesAcrossCalls(t *testing.T) {
	var c Cache
	first := c.Get()
	second := c.Get()
	if first.GPU != second.GPU || first.KernelVersion != second.KernelVersion {
		t.Error("Cache.Get() returned different results on successive calls without Invalidate")
	}
}

func TestDeepCache_InvalidateForcesReprobe(t *testing.T) {
	var c Cache
	_ = c.Get()
	c.Invalidate()
	if c.profile != nil {
		t.Error("Invalidate() left a cached profile in place")
	}
}

func TestDetectCUDAVersion_ParsesBanner(t *testing.T) {
	m := nvidiaSMIVersionPattern.FindSubmatch([]byte("NVIDIA-SMI 535.104.05   Driver Version: 535.104.05   CUDA Version: 12.2"))
	if m == nil || string(m[1]) != "12.2" {
		t.Errorf("nvidiaSMIVersionPattern match = %v, want 12.2", m)
	}
}

func TestDetectCUDAVersion_NoMatch(t *testing.T) {
	m := nvidiaSMIVersionPattern.FindSubmatch([]byte("command not found"))
	if m != nil {
		t.Errorf("nvidiaSMIVersionPattern unexpectedly matched: %v", m)
	}
}

func TestDetectDriverVersion_ParsesBanner(t *testing.T) {
	m := nvidiaSMIDriverPattern.FindSubmatch([]byte("NVIDIA-SMI 535.104.05   Driver Version: 535.104.05   CUDA Version: 12.2"))
	if m == nil || string(m[1]) != "535.104.05" {
		t.Errorf("nvidiaSMIDriverPattern match = %v, want 535.104.05", m)
	}
}
