package scheduler

import (
	"context"
	"runtime"
	"sync"

	"github.com/tsukumogami/provisor/internal/resolver"
	"golang.org/x/sync/errgroup"
)

// StepStatus is the scheduler's view of a step's lifecycle, distinct
// from stepexec.Status (which only describes a step that actually ran).
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
	StepBlocked StepStatus = "blocked"
	StepSkipped StepStatus = "skipped"
)

// RunFunc executes one step and reports whether it succeeded. The
// scheduler does not care what "executing" means — internal/stepexec
// implements this signature — so scheduler has no import-time
// dependency on it.
type RunFunc func(ctx context.Context, step resolver.Step) (ok bool, err error)

// Observer is notified of every status transition, letting the
// orchestrator persist plan state after each step completes per
// §4.6's "on each completion ... persist plan state".
type Observer func(stepID string, status StepStatus, err error)

// Worker budget default, per §4.6: min(4, CPU count).
func defaultWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

// Run dispatches d's steps to run, honoring the DAG's edges, with up
// to workers steps in flight concurrently (0 or negative picks the
// §4.6 default). It returns once every step is done/failed/blocked/
// skipped, or ctx is cancelled.
//
// Ordering guarantee: for step u -> v, u's completion happens-before v
// is dispatched (enforced by only moving v into the ready set once all
// its dependsOn entries have completed). No step starts twice (each
// step id is dispatched from exactly one goroutine, gated by its own
// status transition under the scheduler's mutex).
func Run(ctx context.Context, d *DAG, workers int, run RunFunc, observe Observer) error {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	if observe == nil {
		observe = func(string, StepStatus, error) {}
	}

	s := &scheduler{
		dag:       d,
		status:    make(map[string]StepStatus, len(d.nodes)),
		observe:   observe,
		remaining: make(map[string]int, len(d.nodes)),
	}
	for id, n := range d.nodes {
		s.status[id] = StepPending
		s.remaining[id] = len(n.dependsOn)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	s.g = g

	s.mu.Lock()
	ready := s.readyLocked()
	s.mu.Unlock()
	for _, id := range ready {
		s.start(gctx, id, run)
	}

	return g.Wait()
}

type scheduler struct {
	dag       *DAG
	g         *errgroup.Group
	mu        sync.Mutex
	status    map[string]StepStatus
	remaining map[string]int // unsatisfied predecessor count
	failed    bool
	observe   Observer
}

// readyLocked returns step ids with zero unsatisfied predecessors that
// are still pending, in deterministic DAG order. Caller holds s.mu.
func (s *scheduler) readyLocked() []string {
	var ready []string
	for _, id := range s.dag.order {
		if s.status[id] == StepPending && s.remaining[id] == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// start transitions a ready step to running and dispatches it, unless
// ctx is already cancelled — in which case §4.5's "not-yet-started
// steps become skipped" applies directly: the step never gets a
// chance to run at all, so it goes straight to skipped and its own
// dependents are walked the same way a completed step's would be.
func (s *scheduler) start(ctx context.Context, id string, run RunFunc) {
	if ctx.Err() != nil {
		s.mu.Lock()
		s.status[id] = StepSkipped
		s.mu.Unlock()
		s.observe(id, StepSkipped, nil)
		s.advanceDependents(ctx, id, run)
		return
	}
	s.mu.Lock()
	s.status[id] = StepRunning
	s.mu.Unlock()
	s.observe(id, StepRunning, nil)
	s.g.Go(func() error { return s.dispatch(ctx, id, run) })
}

// dispatch runs one step, then updates dependents and starts any
// newly-ready step. It is only ever invoked once per step id.
func (s *scheduler) dispatch(ctx context.Context, id string, run RunFunc) error {
	n := s.dag.nodes[id]
	ok, err := run(ctx, n.step)

	s.mu.Lock()
	if ok {
		s.status[id] = StepDone
	} else {
		s.status[id] = StepFailed
		s.failed = true
	}
	s.mu.Unlock()
	s.observe(id, s.status[id], err)

	if !ok {
		s.blockDependents(id)
		return nil
	}

	s.advanceDependents(ctx, id, run)
	return nil
}

// advanceDependents decrements id's dependents' unsatisfied-predecessor
// count and starts whichever become ready, whether id itself finished
// (done) or was skipped outright for a cancelled context — either way
// its dependents are now unblocked to be considered (and, if ctx stays
// cancelled, skipped in turn by start).
func (s *scheduler) advanceDependents(ctx context.Context, id string, run RunFunc) {
	n := s.dag.nodes[id]

	s.mu.Lock()
	var newlyReady []string
	for _, dep := range n.dependents {
		s.remaining[dep]--
		if s.remaining[dep] == 0 && s.status[dep] == StepPending && !s.failed {
			newlyReady = append(newlyReady, dep)
		}
	}
	s.mu.Unlock()

	for _, rid := range newlyReady {
		s.start(ctx, rid, run)
	}
}

// blockDependents marks id's entire downstream (transitively) as
// blocked, per §4.6: "mark all not-yet-started dependents as blocked
// and stop dispatching new work; already-running steps run to
// completion."
func (s *scheduler) blockDependents(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var walk func(string)
	seen := make(map[string]bool)
	walk = func(cur string) {
		for _, dep := range s.dag.nodes[cur].dependents {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if s.status[dep] == StepPending {
				s.status[dep] = StepBlocked
				s.observe(dep, StepBlocked, nil)
			}
			walk(dep)
		}
	}
	walk(id)
}
