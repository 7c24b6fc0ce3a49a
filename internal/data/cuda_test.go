package data

import "testing"

func TestDriverSatisfiesCUDA_MeetsMinimum(t *testing.T) {
	if !DriverSatisfiesCUDA("550.54.14", "12.4") {
		t.Error("expected exact minimum driver version to satisfy")
	}
	if !DriverSatisfiesCUDA("560.28.03", "12.4") {
		t.Error("expected newer driver to satisfy older CUDA requirement")
	}
}

func TestDriverSatisfiesCUDA_BelowMinimum(t *testing.T) {
	if DriverSatisfiesCUDA("450.80.02", "12.4") {
		t.Error("expected a too-old driver to fail")
	}
}

func TestDriverSatisfiesCUDA_UnknownCUDAVersion(t *testing.T) {
	if DriverSatisfiesCUDA("560.28.03", "9.9") {
		t.Error("expected unknown CUDA version to return false")
	}
}

func TestDriverSatisfiesCUDA_UnparseableVersion(t *testing.T) {
	if DriverSatisfiesCUDA("not-a-version", "12.4") {
		t.Error("expected unparseable driver version to return false")
	}
}

func TestLatestCUDAVersion(t *testing.T) {
	if got := LatestCUDAVersion(); got != "12.6" {
		t.Errorf("LatestCUDAVersion() = %q, want 12.6", got)
	}
}
