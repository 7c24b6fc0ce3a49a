package main

import (
	"os"

	"github.com/tsukumogami/provisor/internal/perr"
)

// Exit codes for different error types, so scripts driving provisor
// can distinguish failure modes without scraping stderr.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2

	ExitToolNotFound       = 3
	ExitNoSelectableMethod = 4
	ExitNetwork            = 5
	ExitInstallFailed      = 6
	ExitVerifyFailed       = 7
	ExitDependencyFailed   = 8
	ExitChoiceUnresolved   = 9
	ExitPlanNotFound       = 10
	ExitCancelled          = 130
)

func exitWithCode(code int) {
	os.Exit(code)
}

// exitCodeFor maps the typed error taxonomy onto a process exit code;
// an error that isn't a *perr.Error (I/O, programmer error, etc.) gets
// ExitGeneral.
func exitCodeFor(err error) int {
	k, ok := perr.KindOf(err)
	if !ok {
		return ExitGeneral
	}
	switch k {
	case perr.KindToolNotFound:
		return ExitToolNotFound
	case perr.KindNoSelectableMethod:
		return ExitNoSelectableMethod
	case perr.KindNetworkUnreachable:
		return ExitNetwork
	case perr.KindStepFailedExitNonZero, perr.KindStepTimeout, perr.KindStepCancelled:
		return ExitInstallFailed
	case perr.KindDependencyCycle:
		return ExitDependencyFailed
	case perr.KindChoiceUnresolved:
		return ExitChoiceUnresolved
	case perr.KindPlanNotFound, perr.KindPlanCorrupted:
		return ExitPlanNotFound
	default:
		return ExitGeneral
	}
}
