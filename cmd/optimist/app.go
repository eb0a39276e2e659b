package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/daviddao/optimist/internal/config"
	"github.com/daviddao/optimist/internal/logger"
	"github.com/daviddao/optimist/internal/tracer"
	"github.com/daviddao/optimist/pkg/confirm"
	"github.com/daviddao/optimist/pkg/model"
	"github.com/daviddao/optimist/pkg/optimistic"
	"github.com/daviddao/optimist/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg      *config.Config
	store    *store.Store
	log      *zap.Logger
	shutdown func(context.Context) error

	// Persistent flag values; defaults come from cfg.
	dbPath       string
	agentID      string
	name         string
	conversation string
	jsonOut      bool
}

// open builds the logger and tracer, then opens the database. Missing parent
// directories for the database and log file are created.
func (a *app) open(ctx context.Context) error {
	if err := ensureDir(a.cfg.App.LogFilePath); err != nil {
		return err
	}
	a.log = logger.New(a.cfg.App.LogFilePath, a.cfg.IsProduction())
	a.shutdown = tracer.Init(ctx, a.cfg.Otel, a.log)

	if err := ensureDir(a.dbPath); err != nil {
		return err
	}
	s, err := store.New(a.dbPath, store.WithLogger(a.log.Named("store")))
	if err != nil {
		return fmt.Errorf("cannot open database %q: %w", a.dbPath, err)
	}
	a.store = s
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return nil
}

// Close releases the database connection and flushes telemetry.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.shutdown(ctx)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// resolveAgent returns the agent ID from --agent, falling back to
// OPTIMIST_AGENT.
func (a *app) resolveAgent() (string, error) {
	if a.agentID != "" {
		return a.agentID, nil
	}
	return "", fmt.Errorf("no agent ID: pass --agent or set OPTIMIST_AGENT")
}

// identity is the author stamped on speculative messages. The display name
// defaults to the agent ID.
func (a *app) identity() (model.Identity, error) {
	id, err := a.resolveAgent()
	if err != nil {
		return model.Identity{}, err
	}
	name := a.name
	if name == "" {
		name = id
	}
	return model.Identity{ID: id, DisplayName: name}, nil
}

// confirmFunc persists messages into the current conversation, with the
// configured timeout, plus optional latency and fault injection.
func (a *app) confirmFunc(author model.Identity, failRate float64, latency time.Duration) optimistic.ConfirmFunc[string] {
	fn := confirm.Persist(a.store, a.conversation, author)
	fn = confirm.Flaky(fn, failRate, nil)
	fn = confirm.WithLatency(fn, latency)
	return confirm.WithTimeout(fn, a.cfg.Confirm.Timeout)
}

// newManager returns a message outbox for the current conversation.
func (a *app) newManager(author model.Identity, fn optimistic.ConfirmFunc[string],
	onConfirmed func(model.Entity[string]), onFailed func(error, model.Entity[string]),
) (*optimistic.Manager[string], error) {
	return optimistic.New(optimistic.Options[string]{
		Confirm:     fn,
		OnConfirmed: onConfirmed,
		OnFailed:    onFailed,
		Identity:    author,
		Logger:      a.log.Named("outbox"),
	})
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
