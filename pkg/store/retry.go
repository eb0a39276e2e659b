// retry.go provides automatic retry logic for transient SQLite errors.
//
// Several optimistic sends can commit at once, each in its own transaction
// that reads and advances the conversation clock. WAL-mode SQLite then
// produces transient errors like SQLITE_BUSY, SQLITE_LOCKED and
// IOERR_SHORT_READ (522). busy_timeout covers plain lock waits; the rest
// need application-level retries with exponential backoff and jitter.
package store

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for all store write operations.
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// transientPatterns are matched against error text from modernc.org/sqlite.
var transientPatterns = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
	"(5)",   // SQLITE_BUSY code
	"(6)",   // SQLITE_LOCKED code
	"(522)", // SQLITE_IOERR_SHORT_READ code
}

// isTransientSQLiteErr reports whether retrying err may succeed.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp executes fn with exponential backoff + jitter for transient errors.
// It returns immediately on success, on a non-transient error, or when ctx
// is done while waiting between attempts.
func retryOp(ctx context.Context, cfg retryConfig, log *zap.Logger, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}
		delay := backoffDelay(cfg, attempt)
		log.Debug("transient sqlite error, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	log.Warn("giving up after transient sqlite errors",
		zap.Int("attempts", cfg.maxRetries+1), zap.Error(lastErr))
	return lastErr
}

// backoffDelay computes the delay for a given retry attempt using exponential
// backoff with jitter: delay = min(baseDelay * 2^attempt, maxDelay) + random([0, baseDelay)).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
