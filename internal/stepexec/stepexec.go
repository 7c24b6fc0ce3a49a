// Package stepexec implements the step executor (C5): it runs one
// resolved plan step and returns a result record, dispatching on step
// type, handling sudo password delivery over stdin, streaming
// tool/build/download output with a quiet-period flush, and enforcing
// per-step timeouts with a graceful-then-force shutdown.
package stepexec

import (
	"time"

	"github.com/tsukumogami/provisor/internal/log"
)

// Status is the terminal state of a step result.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is the step result record returned by Run.
type Result struct {
	Status     Status
	ExitCode   int
	DurationMS int64
	StdoutTail []string
	StderrTail []string
	Error      error
}

const tailLines = 200

// defaultTimeout and buildTimeout are the per-step hard timeouts from
// §4.5: 120s for blocking steps, 1800s for build. repo_setup, packages,
// post_install and verify are blocking; tool, download and
// github_release stream but still use the blocking default unless the
// step metadata overrides it.
const (
	defaultTimeout = 120 * time.Second
	buildTimeout   = 1800 * time.Second
	killGrace      = 5 * time.Second
	quietPeriod    = 100 * time.Millisecond
)

// PasswordProvider returns the sudo password to write to a child's
// stdin. Implementations should prompt interactively or read from a
// credential store; the executor never persists what it returns.
type PasswordProvider func() (string, error)

// Executor runs steps. It holds no per-plan state beyond its logger
// and password provider, so one Executor can be shared across
// concurrent step runs dispatched by the scheduler (C6).
type Executor struct {
	Logger   log.Logger
	Password PasswordProvider
}

// New builds an Executor. logger may be nil, in which case a noop
// logger is used.
func New(logger log.Logger, password PasswordProvider) *Executor {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Executor{Logger: logger, Password: password}
}
