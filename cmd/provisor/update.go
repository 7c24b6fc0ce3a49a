package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <tool>...",
	Short: "Update one or more already-installed tools",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, toolID := range args {
			fmt.Printf("updating %s\n", toolID)
			res, err := eng.Update(globalCtx, toolID, terminalPasswordProvider, promptRemediation)
			if err != nil {
				return err
			}
			if res.PlanID == "" {
				fmt.Printf("%s: no update method declared, nothing to do\n", toolID)
				continue
			}
			printResult(res)
			if !res.OK {
				return fmt.Errorf("update failed for %s", toolID)
			}
		}
		return nil
	},
}
