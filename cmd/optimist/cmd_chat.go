package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/optimist/pkg/confirm"
	"github.com/daviddao/optimist/pkg/history"
	"github.com/daviddao/optimist/pkg/model"
	"github.com/daviddao/optimist/pkg/optimistic"
)

const chatHelp = `commands:
  <text>          replace the draft
  /send           send the draft
  /undo, /redo    walk the draft history
  /retry <n|id>   resend a failed message
  /cancel <n|id>  drop a message from the outbox
  /list           show the outbox
  /sync           reload the outbox from the log
  /help           show this help
  /quit           leave`

func newChatCmd(a *app) *cobra.Command {
	var (
		failRate float64
		latency  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive outbox with a draft that supports undo and redo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := a.identity()
			if err != nil {
				return err
			}
			s, err := newSession(a, author, a.confirmFunc(author, failRate, latency), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := s.sync(ctx); err != nil {
				return err
			}
			s.printf("%s as %s in %s (/help for commands)\n",
				dimColor.Sprint("chatting"), author.DisplayName, a.conversation)
			return s.loop(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().Float64Var(&failRate, "fail-rate", a.cfg.Confirm.FailRate, "fraction of sends to fail on purpose (env OPTIMIST_FAIL_RATE)")
	cmd.Flags().DurationVar(&latency, "latency", a.cfg.Confirm.Latency, "artificial confirmation delay (env OPTIMIST_LATENCY)")
	return cmd
}

// session is one interactive chat: an outbox of messages plus the draft
// being edited. Observers print from confirmation goroutines, so all output
// goes through printf.
type session struct {
	a     *app
	mgr   *optimistic.Manager[string]
	draft *history.Store[string]

	mu  sync.Mutex
	out io.Writer
}

func newSession(a *app, author model.Identity, fn optimistic.ConfirmFunc[string], out io.Writer) (*session, error) {
	s := &session{a: a, out: out}
	mgr, err := a.newManager(author, fn, s.onConfirmed, s.onFailed)
	if err != nil {
		return nil, err
	}
	s.mgr = mgr
	s.draft = history.New("",
		history.WithMaxHistory[string](a.cfg.App.MaxHistory),
		history.WithOnUndo(func(v string) { s.printf("draft: %q\n", v) }),
		history.WithOnRedo(func(v string) { s.printf("draft: %q\n", v) }),
	)
	return s, nil
}

func (s *session) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) onConfirmed(e model.Entity[string]) {
	s.printf("%s %s: %s\n", sentColor.Sprint("sent"), dimColor.Sprint(e.ID), e.Payload)
}

func (s *session) onFailed(err error, e model.Entity[string]) {
	s.printf("%s %s: %s (%v) /retry or /cancel it\n",
		erroredColor.Sprint("failed"), dimColor.Sprint(e.ID), e.Payload, err)
}

// loop reads commands until /quit, EOF or ctx is done, then waits for
// outstanding confirmations.
func (s *session) loop(ctx context.Context, in io.Reader) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-readCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		case line, ok := <-lines:
			if !ok || s.handle(ctx, line) {
				return s.drain()
			}
		}
	}
}

// drain waits for in-flight confirmations, bounded by the confirm timeout.
func (s *session) drain() error {
	d := s.a.cfg.Confirm.Timeout
	if d <= 0 {
		d = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := s.mgr.Wait(ctx); err != nil {
		return fmt.Errorf("%d message(s) still sending: %w", s.mgr.PendingCount(), err)
	}
	return nil
}

// handle runs one input line and reports whether the session should end.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.draft.Set(line)
		return false
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "/send":
		s.send(ctx)
	case "/undo":
		if !s.draft.Undo() {
			s.printf("nothing to undo\n")
		}
	case "/redo":
		if !s.draft.Redo() {
			s.printf("nothing to redo\n")
		}
	case "/retry":
		id, ok := s.resolve(arg)
		if !ok {
			return false
		}
		if _, err := s.mgr.Retry(ctx, id); err != nil {
			s.printf("cannot retry %s: %v\n", id, err)
		}
	case "/cancel":
		id, ok := s.resolve(arg)
		if !ok {
			return false
		}
		if s.mgr.Cancel(id) {
			s.printf("cancelled %s\n", id)
		}
	case "/list":
		s.list()
	case "/sync":
		if err := s.sync(ctx); err != nil {
			s.printf("sync: %v\n", err)
		}
	case "/help":
		s.printf("%s\n", chatHelp)
	case "/quit", "/exit":
		return true
	default:
		s.printf("unknown command %s (/help for commands)\n", fields[0])
	}
	return false
}

// send applies the draft and starts a fresh one. The sent text stays in the
// draft history, so /undo brings it back.
func (s *session) send(ctx context.Context) {
	body := strings.TrimSpace(s.draft.Present())
	if body == "" {
		s.printf("draft is empty\n")
		return
	}
	a := s.mgr.Apply(ctx, body)
	s.printf("%s %s: %s\n", sendingColor.Sprint("sending"), dimColor.Sprint(a.ID()), body)
	s.draft.Set("")
}

// resolve maps a /list position or an entity id to an id.
func (s *session) resolve(ref string) (string, bool) {
	if ref == "" {
		s.printf("usage: /retry|/cancel <n|id>\n")
		return "", false
	}
	if n, err := strconv.Atoi(ref); err == nil {
		ents := s.mgr.Entities()
		if n < 1 || n > len(ents) {
			s.printf("no message at position %d\n", n)
			return "", false
		}
		return ents[n-1].ID, true
	}
	return ref, true
}

func (s *session) list() {
	ents := s.mgr.Entities()
	if len(ents) == 0 {
		s.printf("no messages\n")
		return
	}
	var b strings.Builder
	for i, e := range ents {
		b.WriteString(formatEntity(i+1, e))
		b.WriteByte('\n')
	}
	if n := s.mgr.PendingCount(); n > 0 {
		fmt.Fprintf(&b, "%d sending\n", n)
	}
	s.printf("%s", b.String())
}

// sync replaces the outbox with the conversation as stored. Unconfirmed
// messages are dropped; a write that lands later shows up on the next sync.
func (s *session) sync(ctx context.Context) error {
	msgs, err := s.a.store.ListConversation(ctx, s.a.conversation)
	if err != nil {
		return err
	}
	return s.mgr.SetCollection(confirm.FromHydrated(msgs))
}
