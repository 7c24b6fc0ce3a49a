//go:build linux

package stepexec

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/tsukumogami/provisor/internal/resolver"
)

// runService enables and starts the unit named by
// Metadata["unit"], a no-op if it's already active. Tries the D-Bus
// systemd API first (the same connection internal/profile's
// HasSystemd comment says this package owns); if the connection
// itself fails — OpenRC, a systemd-less container, a stale PID-1
// check — it falls back to rc-service.
func (e *Executor) runService(ctx context.Context, step resolver.Step) Result {
	start := time.Now()
	unit, _ := step.Metadata["unit"].(string)
	if unit == "" {
		return Result{Status: StatusFailed, Error: fmt.Errorf("service step %q missing unit metadata", step.Label)}
	}

	if res, ok := e.runServiceSystemd(ctx, unit, step.NeedsSudo, start); ok {
		return res
	}
	return e.runServiceOpenRC(ctx, unit, step, start)
}

func (e *Executor) runServiceSystemd(ctx context.Context, unit string, needsSudo bool, start time.Time) (Result, bool) {
	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		e.Logger.Debug("systemd dbus unavailable, falling back to OpenRC", "error", err)
		return Result{}, false
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err == nil {
		if active, ok := props["ActiveState"].(string); ok && active == "active" {
			return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}, true
		}
	}

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		e.Logger.Warn("enable unit failed", "unit", unit, "error", err)
	}

	resultCh := make(chan string, 1)
	if _, err := conn.StartUnitContext(ctx, unit, "replace", resultCh); err != nil {
		return Result{Status: StatusFailed, Error: err, DurationMS: time.Since(start).Milliseconds()}, true
	}
	select {
	case res := <-resultCh:
		if res != "done" {
			return Result{Status: StatusFailed, Error: fmt.Errorf("systemd start result: %s", res), DurationMS: time.Since(start).Milliseconds()}, true
		}
	case <-ctx.Done():
		return Result{Status: StatusCancelled, Error: errCancelled, DurationMS: time.Since(start).Milliseconds()}, true
	}
	return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}, true
}

func (e *Executor) runServiceOpenRC(ctx context.Context, unit string, step resolver.Step, start time.Time) Result {
	if _, err := exec.LookPath("rc-service"); err != nil {
		return Result{Status: StatusFailed, Error: fmt.Errorf("neither systemd dbus nor rc-service available for unit %q", unit), DurationMS: time.Since(start).Milliseconds()}
	}
	statusRes := e.runCommand(ctx, []string{"rc-service", unit, "status"}, runOptions{needsSudo: step.NeedsSudo})
	if statusRes.Status == StatusSucceeded {
		return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
	}
	exec.Command("rc-update", "add", unit, "default").Run()
	return e.runCommand(ctx, []string{"rc-service", unit, "start"}, runOptions{needsSudo: step.NeedsSudo, timeout: timeoutFor(step, defaultTimeout)})
}
