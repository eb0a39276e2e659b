package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		sinceTS  int64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream confirmed messages as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cursor := sinceTS
			if cursor <= 0 {
				v, err := a.store.ClockValue(ctx, a.conversation)
				if err != nil {
					return fmt.Errorf("watch: %w", err)
				}
				cursor = v + 1
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (poll every %s, ctrl-c to stop)\n",
				a.conversation, interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(cmd.ErrOrStderr(), "\nstopped")
					return nil
				case <-ticker.C:
					next, err := a.pollOnce(ctx, cmd.OutOrStdout(), cursor)
					if err != nil {
						a.log.Warn("watch poll failed", zap.Error(err))
						continue
					}
					cursor = next
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")
	cmd.Flags().Int64Var(&sinceTS, "since", 0, "start at this lamport_ts (default: only new messages)")
	return cmd
}

// pollOnce prints messages at or after cursor and returns the next cursor.
func (a *app) pollOnce(ctx context.Context, w io.Writer, cursor int64) (int64, error) {
	msgs, err := a.store.ListMessages(ctx, a.conversation, cursor, 100)
	if err != nil {
		return cursor, err
	}
	for _, m := range msgs {
		if a.jsonOut {
			b, _ := json.Marshal(m)
			fmt.Fprintln(w, string(b))
		} else {
			fmt.Fprintln(w, formatMessage(m))
		}
		if m.LamportTS >= cursor {
			cursor = m.LamportTS + 1
		}
	}
	return cursor, nil
}
