//go:build linux || darwin

package stepexec

import (
	"os/exec"
	"syscall"
	"time"
)

func init() {
	setProcessGroup = func(cmd *exec.Cmd) {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	killProcessGroup = func(cmd *exec.Cmd) {
		if cmd.Process == nil {
			return
		}
		pgid := cmd.Process.Pid
		syscall.Kill(-pgid, syscall.SIGTERM)
		time.AfterFunc(killGrace, func() {
			syscall.Kill(-pgid, syscall.SIGKILL)
		})
	}
}
