package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/provisor/internal/profile"
	"github.com/tsukumogami/provisor/internal/resolver"
)

var planAnswers []string

var planCmd = &cobra.Command{
	Use:   "plan <tool>",
	Short: "Resolve a tool's install plan without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := parseAnswers(planAnswers)
		if err != nil {
			return err
		}

		sp, err := profile.Detect()
		if err != nil {
			return fmt.Errorf("detecting system profile: %w", err)
		}
		var dpCache profile.Cache
		dp := dpCache.Get()

		p, err := resolver.ResolveWithChoices(eng.Recipes, args[0], sp, dp, answers)
		if err != nil {
			return err
		}
		printPlan(p)
		return nil
	},
}

func init() {
	planCmd.Flags().StringArrayVar(&planAnswers, "answer", nil, "recipe choice answer as choice_id=option_id (repeatable)")
}

func printPlan(p *resolver.Plan) {
	if p.AlreadyInstalled {
		fmt.Printf("%s: already installed, nothing to do\n", p.ToolID)
		return
	}
	fmt.Printf("%s: %d step(s), sudo required: %v\n", p.ToolID, len(p.Steps), p.NeedsSudo)
	for i, s := range p.Steps {
		fmt.Printf("  %d. [%s] %s\n", i+1, s.Type, s.Label)
		if len(s.DependsOn) > 0 {
			fmt.Printf("     depends on: %v\n", s.DependsOn)
		}
	}
}
