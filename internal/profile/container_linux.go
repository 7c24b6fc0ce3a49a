package profile

import (
	"bufio"
	"os"
	"strings"
)

// InContainer reports whether the process is running inside a Linux
// container (Docker, Podman, containerd, or an LXC/systemd-nspawn
// container). Checks the conventional marker files first, then falls
// back to scanning /proc/1/cgroup for container-runtime names.
func InContainer() bool {
	return InContainerWithRoot("")
}

// InContainerWithRoot is InContainer with a custom root for testing.
func InContainerWithRoot(root string) bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(root + marker); err == nil {
			return true
		}
	}

	f, err := os.Open(root + "/proc/1/cgroup")
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, marker := range []string{"docker", "kubepods", "containerd", "lxc"} {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
