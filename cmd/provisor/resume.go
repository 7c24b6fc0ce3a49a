package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <plan-id>",
	Short: "Resume a paused or failed plan from its last completed step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := eng.ResumePlan(globalCtx, args[0], terminalPasswordProvider, promptRemediation)
		if err != nil {
			return err
		}
		printResult(res)
		if !res.OK {
			return fmt.Errorf("resume failed for plan %s", args[0])
		}
		return nil
	},
}
