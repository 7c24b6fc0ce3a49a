package main

import (
	"fmt"
	"os"

	"github.com/tsukumogami/provisor/internal/engine"
	"github.com/tsukumogami/provisor/internal/errmsg"
	"github.com/tsukumogami/provisor/internal/scheduler"
)

// printResult renders a PlanResult to stdout: one line per step plus a
// summary, then (on failure) the first failed step's report to stderr.
func printResult(res *engine.PlanResult) {
	if res == nil {
		return
	}
	for _, s := range res.Steps {
		fmt.Printf("  [%s] %s\n", s.Status, s.Step.Label)
	}
	if res.OK {
		fmt.Printf("done (plan %s, %dms)\n", res.PlanID, res.ElapsedMS)
		return
	}
	for _, s := range res.Steps {
		if s.Status != scheduler.StepFailed {
			continue
		}
		printError(fmt.Errorf("%s", errmsg.Format(failureFromOutcome(s))))
		break
	}
}

func failureFromOutcome(s engine.StepOutcome) errmsg.StepFailure {
	f := errmsg.StepFailure{StepLabel: s.Step.Label}
	if s.Result != nil {
		f.StderrTail = s.Result.StderrTail
		f.Err = s.Result.Error
	}
	return f
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, err)
}
