package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInContainerWithRoot_DockerEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".dockerenv"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !InContainerWithRoot(dir) {
		t.Error("InContainerWithRoot() = false, want true")
	}
}

func TestInContainerWithRoot_Cgroup(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "proc", "1"), 0755); err != nil {
		t.Fatal(err)
	}
	content := "0::/kubepods/besteffort/pod123/abcdef\n"
	if err := os.WriteFile(filepath.Join(dir, "proc", "1", "cgroup"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if !InContainerWithRoot(dir) {
		t.Error("InContainerWithRoot() = false, want true")
	}
}

func TestInContainerWithRoot_Bare(t *testing.T) {
	dir := t.TempDir()
	if InContainerWithRoot(dir) {
		t.Error("InContainerWithRoot() = true, want false")
	}
}
