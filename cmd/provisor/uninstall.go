package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <tool>...",
	Aliases: []string{"remove"},
	Short:   "Roll back one or more installed tools",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, toolID := range args {
			fmt.Printf("uninstalling %s\n", toolID)
			res, err := eng.Uninstall(globalCtx, toolID, terminalPasswordProvider, promptRemediation)
			if err != nil {
				return err
			}
			if res.PlanID == "" {
				fmt.Printf("%s: no rollback method declared, nothing to do\n", toolID)
				continue
			}
			printResult(res)
			if !res.OK {
				return fmt.Errorf("uninstall failed for %s", toolID)
			}
		}
		return nil
	},
}
