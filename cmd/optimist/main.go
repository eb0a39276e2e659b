// Command optimist is a chat outbox that shows each message the moment it is
// typed and reconciles it once the shared SQLite log has stamped it with a
// Lamport timestamp.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/daviddao/optimist/internal/config"
)

const version = "0.1.0"

func main() {
	os.Exit(run(config.Load(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}
	defer a.Close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "optimist: %v\n", err)
		return 1
	}
	return 0
}
