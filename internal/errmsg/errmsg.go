// Package errmsg renders step failures into the user-visible report
// shape required by the orchestrator: failing step label, a tail of
// stderr, the matched handler's label/description, and ranked
// remediation options grouped by availability.
package errmsg

import (
	"errors"
	"strings"

	"github.com/tsukumogami/provisor/internal/perr"
)

// RemediationOption mirrors the analyzer's ranked option shape. It is
// redeclared here (rather than imported) so errmsg has no dependency
// on internal/analyzer.
type RemediationOption struct {
	Strategy       string
	Label          string
	Gate           string // ready|locked|impossible
	DisabledReason string
	EnableHint     string
	Recommended    bool
}

// MatchedHandler carries the handler that matched a step's stderr, if
// any, for inclusion in the report.
type MatchedHandler struct {
	Label       string
	Description string
}

// StepFailure is the input to Format: everything the orchestrator
// knows about a failed step once the analyzer has run.
type StepFailure struct {
	StepLabel  string
	StderrTail []string // already trimmed to ~20 lines by the executor
	Handler    *MatchedHandler
	Options    []RemediationOption
	Err        error
}

const maxStderrLines = 20

// Format renders a StepFailure into the multi-section report described
// in the error handling design: failing step, stderr tail, matched
// handler, then ready/locked/impossible remediation options in that
// order.
func Format(f StepFailure) string {
	var sb strings.Builder

	sb.WriteString("step failed: ")
	sb.WriteString(f.StepLabel)
	sb.WriteString("\n")

	if f.Err != nil {
		sb.WriteString(causeLine(f.Err))
		sb.WriteString("\n")
	}

	if len(f.StderrTail) > 0 {
		tail := f.StderrTail
		if len(tail) > maxStderrLines {
			tail = tail[len(tail)-maxStderrLines:]
		}
		sb.WriteString("\nstderr:\n")
		for _, line := range tail {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if f.Handler != nil {
		sb.WriteString("\n")
		sb.WriteString(f.Handler.Label)
		if f.Handler.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Handler.Description)
		}
		sb.WriteString("\n")
	}

	if len(f.Options) > 0 {
		sb.WriteString("\noptions:\n")
		for _, group := range []string{"ready", "locked", "impossible"} {
			for _, opt := range f.Options {
				if opt.Gate != group {
					continue
				}
				sb.WriteString("  [")
				sb.WriteString(opt.Gate)
				sb.WriteString("] ")
				sb.WriteString(opt.Label)
				if opt.Recommended {
					sb.WriteString(" (recommended)")
				}
				if opt.DisabledReason != "" {
					sb.WriteString(" -- ")
					sb.WriteString(opt.DisabledReason)
				}
				if opt.EnableHint != "" {
					sb.WriteString(" (")
					sb.WriteString(opt.EnableHint)
					sb.WriteString(")")
				}
				sb.WriteString("\n")
			}
		}
	}

	return sb.String()
}

// causeLine renders a one-line cause summary, pulling kind-specific
// phrasing from a *perr.Error when present.
func causeLine(err error) string {
	var pe *perr.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case perr.KindStepTimeout:
			return "cause: the step exceeded its execution timeout"
		case perr.KindSudoAuthFailed:
			return "cause: sudo rejected the supplied password"
		case perr.KindSudoPasswordRequired:
			return "cause: this step needs sudo and no password was provided"
		case perr.KindNetworkUnreachable:
			return "cause: network unreachable"
		case perr.KindDiskFull:
			return "cause: disk full"
		case perr.KindStepCancelled:
			return "cause: step was cancelled"
		default:
			return "cause: " + err.Error()
		}
	}
	return "cause: " + err.Error()
}
