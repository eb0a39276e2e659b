package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the conversation clock and message count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			clk, err := a.store.ClockValue(ctx, a.conversation)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			n, err := a.store.CountMessages(ctx, a.conversation)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				printJSON(out, map[string]interface{}{
					"conversation": a.conversation,
					"agent":        a.agentID,
					"clock":        clk,
					"messages":     n,
					"db":           a.dbPath,
				})
				return nil
			}
			fmt.Fprintf(out, "conversation: %s\n", a.conversation)
			if a.agentID != "" {
				fmt.Fprintf(out, "agent:        %s\n", a.agentID)
			}
			fmt.Fprintf(out, "clock:        %d\n", clk)
			fmt.Fprintf(out, "messages:     %d\n", n)
			return nil
		},
	}
}
