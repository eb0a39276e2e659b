package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		sinceTS int64
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List confirmed messages in Lamport order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := a.store.ListMessages(cmd.Context(), a.conversation, sinceTS, limit)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				printJSON(out, map[string]interface{}{"messages": msgs, "count": len(msgs)})
				return nil
			}
			if len(msgs) == 0 {
				fmt.Fprintln(out, "no messages")
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintln(out, formatMessage(m))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&sinceTS, "since", 0, "fetch messages with lamport_ts >= this")
	cmd.Flags().IntVar(&limit, "limit", 50, "max messages to return")
	return cmd
}
