package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tsukumogami/provisor/internal/analyzer"
	"github.com/tsukumogami/provisor/internal/resolver"
)

// promptRemediation is the interactive RemediationChooser: it lists
// every ranked option's gate and label, and lets the operator pick a
// ready one by number or decline remediation entirely.
func promptRemediation(step resolver.Step, options []analyzer.RankedOption) (*analyzer.RankedOption, bool) {
	if len(options) == 0 {
		return nil, false
	}
	fmt.Fprintf(os.Stderr, "\nstep %q failed; remediation options:\n", step.Label)
	for i, opt := range options {
		fmt.Fprintf(os.Stderr, "  %d) [%s] %s: %s\n", i+1, opt.Availability, opt.HandlerLabel, opt.Label)
		if opt.Availability != analyzer.Ready && opt.DisabledReason != "" {
			fmt.Fprintf(os.Stderr, "       %s\n", opt.DisabledReason)
		}
	}
	fmt.Fprint(os.Stderr, "apply which option? (number, or blank to give up): ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		return nil, false
	}
	chosen := options[n-1]
	if chosen.Availability != analyzer.Ready {
		fmt.Fprintln(os.Stderr, "that option isn't ready; run `provisor install` again once it is")
		return nil, false
	}
	return &chosen, true
}
