package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// noStore marks commands that run without opening the database.
const noStore = "no-store"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "optimist",
		Short: "Optimistic chat outbox over a Lamport-ordered SQLite log",
		Long: `optimist shows every message the moment it is sent, then reconciles it
with the shared SQLite log, which stamps each message with a per-conversation
Lamport timestamp. Failed sends stay visible until retried or cancelled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := cmd.Annotations[noStore]; ok {
				return nil
			}
			return a.open(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.dbPath, "db", a.cfg.App.DBPath, "SQLite database path (env OPTIMIST_DB)")
	pf.StringVar(&a.agentID, "agent", a.cfg.Identity.AgentID, "agent ID (env OPTIMIST_AGENT)")
	pf.StringVar(&a.name, "name", a.cfg.Identity.DisplayName, "display name (env OPTIMIST_NAME)")
	pf.StringVarP(&a.conversation, "conversation", "c", a.cfg.App.Conversation, "conversation (env OPTIMIST_CONVERSATION)")
	pf.BoolVar(&a.jsonOut, "json", false, "JSON output")

	root.AddCommand(
		newSendCmd(a),
		newLogCmd(a),
		newWatchCmd(a),
		newStatusCmd(a),
		newChatCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noStore: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "optimist", version)
		},
	}
}
