// Package perr defines the typed error taxonomy shared across the
// resolver, choice resolver, step executor, scheduler and plan state
// store. The failures the taxonomy names are returned as one of these
// kinds (reachable via errors.As), so callers can branch on Kind
// without string matching; other failures, such as I/O errors, are
// returned as plain wrapped errors.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies a provisioning error.
type Kind int

const (
	// KindToolNotFound means the requested tool id has no recipe.
	KindToolNotFound Kind = iota
	// KindNoSelectableMethod means every install method was rejected
	// (missing on profile, or family mismatch).
	KindNoSelectableMethod
	// KindDependencyCycle means requires.binaries formed a cycle.
	KindDependencyCycle
	// KindChoiceUnresolved means a recipe choice has no answer and no
	// default could be auto-selected.
	KindChoiceUnresolved
	// KindStepTimeout means a step exceeded its execution deadline.
	KindStepTimeout
	// KindStepFailedExitNonZero means a step's subprocess exited non-zero.
	KindStepFailedExitNonZero
	// KindStepCancelled means a step was cancelled mid-execution.
	KindStepCancelled
	// KindSudoPasswordRequired means a step needs sudo and no password
	// was supplied yet.
	KindSudoPasswordRequired
	// KindSudoAuthFailed means sudo rejected the supplied password.
	KindSudoAuthFailed
	// KindNetworkUnreachable means a download/github_release step could
	// not reach the network.
	KindNetworkUnreachable
	// KindDiskFull means a step failed because the filesystem is full.
	KindDiskFull
	// KindPlanNotFound means a plan id has no state record.
	KindPlanNotFound
	// KindPlanCorrupted means a plan state file failed to parse.
	KindPlanCorrupted
)

// String renders the Kind in the same PascalCase used by the error
// taxonomy table so it reads naturally in logs.
func (k Kind) String() string {
	switch k {
	case KindToolNotFound:
		return "ToolNotFound"
	case KindNoSelectableMethod:
		return "NoSelectableMethod"
	case KindDependencyCycle:
		return "DependencyCycle"
	case KindChoiceUnresolved:
		return "ChoiceUnresolved"
	case KindStepTimeout:
		return "StepTimeout"
	case KindStepFailedExitNonZero:
		return "StepFailedExitNonZero"
	case KindStepCancelled:
		return "StepCancelled"
	case KindSudoPasswordRequired:
		return "SudoPasswordRequired"
	case KindSudoAuthFailed:
		return "SudoAuthFailed"
	case KindNetworkUnreachable:
		return "NetworkUnreachable"
	case KindDiskFull:
		return "DiskFull"
	case KindPlanNotFound:
		return "PlanNotFound"
	case KindPlanCorrupted:
		return "PlanCorrupted"
	default:
		return "Unknown"
	}
}

// Error is the structured error type returned across the core. Source
// names the subsystem that raised it (e.g. "resolver", "executor") for
// log correlation; Context carries kind-specific detail (tool id,
// method list, cycle path, step label...) that callers may format
// without re-deriving it from Err.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with no wrapped cause.
func New(kind Kind, source, message string) *Error {
	return &Error{Kind: kind, Source: source, Message: message}
}

// Wrap builds an Error around an existing error.
func Wrap(kind Kind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

// WithContext attaches a context field and returns the same Error for
// chaining at the construction site.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// KindOf unwraps err looking for a *Error and reports its Kind. Callers
// that only care about the taxonomy (exit codes, metrics labels) use
// this instead of a direct errors.As at every call site.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Retryable reports whether the orchestrator may retry the operation
// that produced this error without user intervention (e.g. after a
// failure-analyzer remediation has been applied).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindStepTimeout, KindStepFailedExitNonZero, KindNetworkUnreachable, KindDiskFull:
		return true
	case KindSudoPasswordRequired:
		return true
	default:
		return false
	}
}
