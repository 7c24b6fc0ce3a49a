package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/provisor/internal/engine"
	"github.com/tsukumogami/provisor/internal/planstate"
)

var pendingToolID string
var pendingStatus string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List plans that are paused, failed, or still running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := eng.ListPendingPlans(engine.PlanFilter{
			ToolID: pendingToolID,
			Status: planstate.Status(pendingStatus),
		})
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("no pending plans")
			return nil
		}
		for _, st := range states {
			fmt.Printf("%s  %-10s  %-20s  step %d/%d  updated %s\n",
				st.PlanID, st.Status, st.ToolID, st.LastCompletedIndex+1, len(st.Plan.Steps), st.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingToolID, "tool", "", "filter by tool id")
	pendingCmd.Flags().StringVar(&pendingStatus, "status", "", "filter by status (pending|running|paused|failed|done)")
}
