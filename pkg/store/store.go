// Package store persists confirmed chat messages in SQLite.
//
// The store is the confirming authority behind the optimistic outbox: a
// message becomes confirmed the moment its row commits. Every conversation
// carries a Lamport clock; each insert ticks it inside the same transaction
// and stamps the message, so ListMessages returns one total order that all
// writers agree on regardless of wall-clock skew.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/daviddao/optimist/pkg/clock"
	"github.com/daviddao/optimist/pkg/model"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a message id does not exist.
	ErrNotFound = errors.New("store: message not found")

	// ErrNoConversation is returned when a message names no conversation.
	ErrNoConversation = errors.New("store: conversation is required")
)

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db       *sqlx.DB
	log      *zap.Logger
	retry    retryConfig
	pageSize int
}

const defaultPageSize = 500

// Option configures a Store.
type Option func(*Store)

// WithLogger routes retry and migration logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string, opts ...Option) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, log: zap.NewNop(), retry: defaultRetryConfig, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp with the store's config and logger.
// All write operations go through it.
func (s *Store) retryOnContention(ctx context.Context, op string, fn func() error) error {
	return retryOp(ctx, s.retry, s.log.With(zap.String("op", op)), fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation TEXT NOT NULL,
		author_id    TEXT NOT NULL DEFAULT '',
		author_name  TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL DEFAULT '',
		lamport_ts   INTEGER NOT NULL,
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conv_lamport ON messages(conversation, lamport_ts);

	CREATE TABLE IF NOT EXISTS clocks (
		conversation TEXT PRIMARY KEY,
		value        INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// messageRow mirrors the messages table; created_at is stored as RFC3339Nano.
type messageRow struct {
	ID           int64  `db:"id"`
	Conversation string `db:"conversation"`
	AuthorID     string `db:"author_id"`
	AuthorName   string `db:"author_name"`
	Body         string `db:"body"`
	LamportTS    int64  `db:"lamport_ts"`
	CreatedAt    string `db:"created_at"`
}

func (r messageRow) toModel() (model.Message, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("parse created_at for message %d: %w", r.ID, err)
	}
	return model.Message{
		ID:           r.ID,
		Conversation: r.Conversation,
		AuthorID:     r.AuthorID,
		AuthorName:   r.AuthorName,
		Body:         r.Body,
		LamportTS:    r.LamportTS,
		CreatedAt:    created,
	}, nil
}

const selectMessage = `SELECT id, conversation, author_id, author_name, body, lamport_ts, created_at FROM messages`

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// InsertMessage appends m to its conversation and returns the stored copy
// with ID, LamportTS and CreatedAt filled in.
//
// The conversation clock advances by IR1 (Tick) for local messages. When m
// already carries a LamportTS, for instance a message relayed from another
// replica, the clock advances by IR2 (Receive) instead.
func (s *Store) InsertMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m.Conversation == "" {
		return nil, ErrNoConversation
	}
	out := *m
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	err := s.retryOnContention(ctx, "insert message", func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		// Write before reading so the transaction holds the write lock
		// from the start and never has to upgrade a stale read snapshot.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clocks (conversation, value) VALUES (?, 0)
			 ON CONFLICT(conversation) DO NOTHING`,
			m.Conversation,
		); err != nil {
			return fmt.Errorf("lock clock: %w", err)
		}

		var cur int64
		if err := tx.GetContext(ctx, &cur,
			`SELECT value FROM clocks WHERE conversation = ?`, m.Conversation,
		); err != nil {
			return fmt.Errorf("read clock: %w", err)
		}

		c := &clock.Clock{}
		c.Set(cur)
		var ts int64
		if m.LamportTS > 0 {
			ts = c.Receive(m.LamportTS)
		} else {
			ts = c.Tick()
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE clocks SET value = ? WHERE conversation = ?`, ts, m.Conversation,
		); err != nil {
			return fmt.Errorf("advance clock: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation, author_id, author_name, body, lamport_ts, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.Conversation, m.AuthorID, m.AuthorName, m.Body, ts,
			out.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
		out.ID = id
		out.LamportTS = ts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessage retrieves a message by row ID.
func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var row messageRow
	if err := s.db.GetContext(ctx, &row, selectMessage+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, err
	}
	m, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns messages in conversation with lamport_ts >= sinceTS,
// in Lamport order (ties by row ID). A non-positive limit means 100.
func (s *Store) ListMessages(ctx context.Context, conversation string, sinceTS int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows,
		selectMessage+` WHERE conversation = ? AND lamport_ts >= ?
		 ORDER BY lamport_ts ASC, id ASC LIMIT ?`,
		conversation, sinceTS, limit,
	); err != nil {
		return nil, err
	}
	return toModels(rows)
}

// ListConversation returns every message in conversation in the same order
// as ListMessages. It reads in pages keyed on (lamport_ts, id), so rows
// inserted while it runs either appear after the last page or not at all.
func (s *Store) ListConversation(ctx context.Context, conversation string) ([]model.Message, error) {
	var (
		all    []model.Message
		lastTS int64
		lastID int64
	)
	for {
		var rows []messageRow
		if err := s.db.SelectContext(ctx, &rows,
			selectMessage+` WHERE conversation = ?
			 AND (lamport_ts > ? OR (lamport_ts = ? AND id > ?))
			 ORDER BY lamport_ts ASC, id ASC LIMIT ?`,
			conversation, lastTS, lastTS, lastID, s.pageSize,
		); err != nil {
			return nil, fmt.Errorf("list conversation %q: %w", conversation, err)
		}
		page, err := toModels(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
		last := page[len(page)-1]
		lastTS, lastID = last.LamportTS, last.ID
	}
}

func toModels(rows []messageRow) ([]model.Message, error) {
	msgs := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// CountMessages returns the number of messages in conversation.
func (s *Store) CountMessages(ctx context.Context, conversation string) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE conversation = ?`, conversation)
	return n, err
}

// ClockValue returns the conversation's Lamport clock (0 if it has no
// messages yet).
func (s *Store) ClockValue(ctx context.Context, conversation string) (int64, error) {
	var v int64
	err := s.db.GetContext(ctx, &v,
		`SELECT COALESCE((SELECT value FROM clocks WHERE conversation = ?), 0)`, conversation)
	return v, err
}
