package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var installAnswers []string
var installAutoApplyReady bool

var installCmd = &cobra.Command{
	Use:   "install <tool>...",
	Short: "Install one or more tools from their recipes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := parseAnswers(installAnswers)
		if err != nil {
			return err
		}
		eng.AutoApplyReady = installAutoApplyReady

		for _, toolID := range args {
			fmt.Printf("installing %s\n", toolID)
			res, err := eng.InstallTool(globalCtx, toolID, answers, terminalPasswordProvider, promptRemediation)
			if err != nil {
				return err
			}
			printResult(res)
			if !res.OK {
				return fmt.Errorf("install failed for %s", toolID)
			}
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringArrayVar(&installAnswers, "answer", nil, "recipe choice answer as choice_id=option_id (repeatable)")
	installCmd.Flags().BoolVar(&installAutoApplyReady, "auto-remediate", false, "automatically apply a ready remediation option instead of prompting")
}

func parseAnswers(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	answers := make(map[string]string, len(raw))
	for _, a := range raw {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --answer %q, want choice_id=option_id", a)
		}
		answers[k] = v
	}
	return answers, nil
}
