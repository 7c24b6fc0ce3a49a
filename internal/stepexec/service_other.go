//go:build !linux

package stepexec

import (
	"context"
	"fmt"
	"time"

	"github.com/tsukumogami/provisor/internal/resolver"
)

// runService has no systemd/OpenRC target outside Linux; recipes whose
// primary method needs a service step are Linux-only (docker, most
// daemons this module provisions), so this is reached only if a
// recipe's when-clause is wrong, not a supported path.
func (e *Executor) runService(_ context.Context, step resolver.Step) Result {
	start := time.Now()
	return Result{Status: StatusFailed, Error: fmt.Errorf("service step %q is not supported on this platform", step.Label), DurationMS: time.Since(start).Milliseconds()}
}
