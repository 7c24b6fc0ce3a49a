// Package functional runs the end-to-end scenarios from the system's
// correctness properties (S1-S6: method selection, choice gating,
// failure remediation, resume, and choice round-trip) directly against
// the resolver/choice/analyzer/planstate packages, using constructed
// system profiles in place of a real host's detection. Unlike a
// black-box CLI harness, these scenarios hinge on system profiles
// (a specific GPU, a specific distro, a missing systemd) no single CI
// runner can reliably reproduce by installing real packages, so the
// harness drives the same packages the CLI wires together instead of
// shelling out to the built binary.
package functional

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

func getState(ctx context.Context) *scenarioState {
	s, _ := ctx.Value(stateKey).(*scenarioState)
	return s
}

func setState(ctx context.Context, s *scenarioState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("PROVISOR_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options:             opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		stateDir, err := os.MkdirTemp("", "provisor-functional-*")
		if err != nil {
			return ctx, err
		}
		return setState(ctx, &scenarioState{stateDir: stateDir}), nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if s := getState(ctx); s != nil {
			os.RemoveAll(s.stateDir)
			s.restorePATH()
		}
		return ctx, err
	})

	ctx.Step(`^the system profile "([^"]*)"$`, theSystemProfile)
	ctx.Step(`^"([^"]*)" and "([^"]*)" are not on PATH$`, binariesNotOnPath)
	ctx.Step(`^I resolve the plan for "([^"]*)"$`, iResolveThePlan)
	ctx.Step(`^I resolve the plan for "([^"]*)" answering "([^"]*)"$`, iResolveThePlanAnswering)
	ctx.Step(`^I resolve choices for "([^"]*)"$`, iResolveChoicesFor)
	ctx.Step(`^the plan has (\d+) steps?$`, thePlanHasSteps)
	ctx.Step(`^step (\d+) has type "([^"]*)" and command mentions "([^"]*)"$`, stepHasTypeAndCommandMentions)
	ctx.Step(`^step (\d+) has type "([^"]*)" and label mentions "([^"]*)"$`, stepHasTypeAndLabelMentions)
	ctx.Step(`^the plan contains a step of type "([^"]*)" with metadata unit "([^"]*)"$`, planContainsServiceStep)
	ctx.Step(`^no plan step command mentions "([^"]*)"$`, noPlanStepCommandMentions)
	ctx.Step(`^choice "([^"]*)" option "([^"]*)" is unavailable mentioning "([^"]*)"$`, choiceOptionUnavailableMentioning)
	ctx.Step(`^choice "([^"]*)" option "([^"]*)" is unavailable$`, choiceOptionUnavailable)
	ctx.Step(`^choice "([^"]*)" option "([^"]*)" is available$`, choiceOptionAvailable)
	ctx.Step(`^choice "([^"]*)" option "([^"]*)" is available and recommended$`, choiceOptionAvailableAndRecommended)
	ctx.Step(`^a failed "([^"]*)" step labeled "([^"]*)" with stderr "([^"]*)"$`, aFailedStepWithStderr)
	ctx.Step(`^I analyze the failure against the "([^"]*)" recipe$`, iAnalyzeTheFailure)
	ctx.Step(`^the ranked options are, in order:$`, theRankedOptionsAreInOrder)
	ctx.Step(`^option (\d+) switches to method "([^"]*)"$`, optionSwitchesToMethod)
	ctx.Step(`^a (\d+)-step plan for "([^"]*)" saved with status "([^"]*)" and last_completed_index (\d+)$`, aPlanSavedWithStatus)
	ctx.Step(`^I resume the plan$`, iResumeThePlan)
	ctx.Step(`^the remaining steps resubmitted are steps (\d+), (\d+) and (\d+)$`, theRemainingStepsAre)
	ctx.Step(`^each of steps (\d+) and (\d+) was executed exactly once$`, eachStepExecutedOnce)
}
