package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message and wait for it to be confirmed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := a.identity()
			if err != nil {
				return err
			}
			m, err := a.newManager(author,
				a.confirmFunc(author, a.cfg.Confirm.FailRate, a.cfg.Confirm.Latency), nil, nil)
			if err != nil {
				return err
			}

			attempt := m.Apply(cmd.Context(), strings.Join(args, " "))
			if err := attempt.Wait(cmd.Context()); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			e, _ := attempt.Result()

			out := cmd.OutOrStdout()
			if a.jsonOut {
				printJSON(out, map[string]interface{}{
					"speculative_id": attempt.ID(),
					"entity":         e,
					"conversation":   a.conversation,
				})
			} else if e.IsConfirmed() {
				fmt.Fprintf(out, "%s %s in %s\n", sentColor.Sprint("sent"), e.ID, a.conversation)
			}
			if e.IsErrored() {
				return fmt.Errorf("send failed: %s", e.ErrorDetail)
			}
			return nil
		},
	}
}
