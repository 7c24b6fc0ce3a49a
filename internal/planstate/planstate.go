// Package planstate implements the plan state store (C7): durable,
// atomically-written plan snapshots under a state directory, keyed by
// plan id, that let the orchestrator resume an interrupted install.
package planstate

import (
	"time"

	"github.com/tsukumogami/provisor/internal/resolver"
)

// Status is a plan snapshot's lifecycle stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// StepResult records one executed step's outcome within a plan, a
// durable counterpart to stepexec.Result keyed by step id so it can be
// replayed against resolver.Plan.Steps on resume.
type StepResult struct {
	StepID     string    `json:"step_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	ExitCode   int       `json:"exit_code"`
	StdoutTail []string  `json:"stdout_tail,omitempty"`
	StderrTail []string  `json:"stderr_tail,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// State is one plan's persistent snapshot, per §3.7.
type State struct {
	PlanID    string          `json:"plan_id"`
	ToolID    string          `json:"tool_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Status    Status          `json:"status"`
	Plan      *resolver.Plan  `json:"plan"`
	// OwnerPID is the process that was driving execution when Status
	// was last written "running"; reap() uses it to detect a crashed
	// owner and transition orphaned runs to paused.
	OwnerPID     int               `json:"owner_pid,omitempty"`
	StepResults  []StepResult      `json:"step_results"`
	// LastCompletedIndex is the monotone resume cursor: index into
	// Plan.Steps of the last step that finished successfully, or -1
	// if none have.
	LastCompletedIndex int               `json:"last_completed_index"`
	UserChoices        map[string]string `json:"user_choices,omitempty"`
}

// idempotentStepTypes are step kinds §4.7 says may be safely re-run
// even if LastCompletedIndex undercounts true progress.
var idempotentStepTypes = map[string]bool{
	"config":        true,
	"shell_config":  true,
	"service":       true,
	"packages":      true,
	"verify":        true,
}

// StepIsIdempotent reports whether re-executing a step of this type is
// safe, used by resume to decide how conservatively to trust a stale
// LastCompletedIndex.
func StepIsIdempotent(stepType string) bool {
	return idempotentStepTypes[stepType]
}

// RemainingSteps returns the steps after LastCompletedIndex, the slice
// resume re-submits to the scheduler. resolver.Resolve chains each
// step's DependsOn to its immediate predecessor's ID, so the first
// remaining step (and any other remaining step whose DependsOn names a
// completed, now-truncated-away step) would otherwise reference a step
// ID absent from this slice — scheduler.Build rejects that as a
// dangling dependency. Those references are dropped here since the
// completed steps they pointed at have already run.
func (s *State) RemainingSteps() []resolver.Step {
	if s.Plan == nil {
		return nil
	}
	idx := s.LastCompletedIndex + 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.Plan.Steps) {
		return nil
	}
	remaining := append([]resolver.Step(nil), s.Plan.Steps[idx:]...)

	present := make(map[string]bool, len(remaining))
	for _, step := range remaining {
		present[step.ID] = true
	}
	for i, step := range remaining {
		if len(step.DependsOn) == 0 {
			continue
		}
		kept := step.DependsOn[:0:0]
		for _, dep := range step.DependsOn {
			if present[dep] {
				kept = append(kept, dep)
			}
		}
		remaining[i].DependsOn = kept
	}
	return remaining
}
