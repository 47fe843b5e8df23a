package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goquartz/quartz/logger"
	"github.com/goquartz/quartz/quartz"
)

// Semaphore is the named mutual-exclusion primitive of the clustered
// store. At any instant, at most one scheduler instance in the cluster
// holds a given (schedName, lockName) pair. Release happens implicitly
// when the owning transaction commits or rolls back.
type Semaphore interface {
	// ObtainLock blocks until the named lock is held by the given
	// transaction, or fails after the configured retries.
	ObtainLock(ctx context.Context, tx *sql.Tx, lockName string) error
}

// StdRowLockSemaphoreOptions represents additional StdRowLockSemaphore
// properties.
type StdRowLockSemaphoreOptions struct {
	// MaxRetry is the number of acquisition attempts before giving up.
	// Default: 3.
	MaxRetry int

	// RetryPeriod is the pause between acquisition attempts.
	// Default: 1 second.
	RetryPeriod time.Duration

	// SelectSQL overrides the row-locking select template, e.g. for
	// dialects without FOR UPDATE.
	SelectSQL string

	// Logger is the semaphore logger.
	// Default: logger.Default().
	Logger logger.Logger
}

// StdRowLockSemaphore implements the Semaphore interface with a
// SELECT ... FOR UPDATE on a row of the LOCKS table. A missing lock row
// is inserted on first use and the select is retried.
type StdRowLockSemaphore struct {
	selectSQL   string
	insertSQL   string
	maxRetry    int
	retryPeriod time.Duration
	logger      logger.Logger
}

var _ Semaphore = (*StdRowLockSemaphore)(nil)

// NewStdRowLockSemaphore returns a new StdRowLockSemaphore for the given
// table prefix and schedule name with the default configuration.
func NewStdRowLockSemaphore(tablePrefix, schedName string) *StdRowLockSemaphore {
	return NewStdRowLockSemaphoreWithOptions(tablePrefix, schedName,
		StdRowLockSemaphoreOptions{})
}

// NewStdRowLockSemaphoreWithOptions returns a new StdRowLockSemaphore
// configured as specified.
func NewStdRowLockSemaphoreWithOptions(tablePrefix, schedName string,
	opts StdRowLockSemaphoreOptions) *StdRowLockSemaphore {
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.RetryPeriod <= 0 {
		opts.RetryPeriod = time.Second
	}
	if opts.SelectSQL == "" {
		opts.SelectSQL = sqlSelectForLock
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &StdRowLockSemaphore{
		selectSQL:   rtp(opts.SelectSQL, tablePrefix, schedName),
		insertSQL:   rtp(sqlInsertLock, tablePrefix, schedName),
		maxRetry:    opts.MaxRetry,
		retryPeriod: opts.RetryPeriod,
		logger:      opts.Logger,
	}
}

// ObtainLock executes the locking select against the row identified by
// the lock name. When the row does not exist yet it is inserted and the
// select retried, up to MaxRetry times with RetryPeriod pauses.
func (sem *StdRowLockSemaphore) ObtainLock(ctx context.Context, tx *sql.Tx,
	lockName string) error {
	var lastErr error
	for attempt := 0; attempt < sem.maxRetry; attempt++ {
		if attempt > 0 {
			sem.logger.Debugf("Retrying to obtain lock %s, attempt %d.",
				lockName, attempt+1)
			timer := time.NewTimer(sem.retryPeriod)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		rows, err := tx.QueryContext(ctx, sem.selectSQL, lockName)
		if err != nil {
			lastErr = err
			continue
		}
		found := rows.Next()
		closeErr := rows.Close()
		if err := rows.Err(); err != nil {
			lastErr = err
			continue
		}
		if closeErr != nil {
			lastErr = closeErr
			continue
		}
		if found {
			return nil
		}
		// the lock row does not exist: seat it and retry the select
		if _, err := tx.ExecContext(ctx, sem.insertSQL, lockName); err != nil {
			// a peer may have inserted the row concurrently
			sem.logger.Debugf("Failed to insert lock row %s: %s", lockName, err)
			lastErr = err
			continue
		}
	}
	if lastErr == nil {
		lastErr = sql.ErrNoRows
	}
	return fmt.Errorf("%w: %s after %d attempts: %s",
		quartz.ErrLockAcquire, lockName, sem.maxRetry, lastErr)
}

// lockContext tracks the transaction and the set of lock names held by
// the current call chain. It is carried through the context, which is
// the Go rendering of a thread-local lock-owner set: reentrant
// executeInLock calls on the same chain reuse the transaction instead of
// deadlocking on the database row.
type lockContext struct {
	tx    *sql.Tx
	names map[string]struct{}
}

type lockContextKey struct{}

func lockContextFrom(ctx context.Context) *lockContext {
	lc, _ := ctx.Value(lockContextKey{}).(*lockContext)
	return lc
}

func withLockContext(ctx context.Context, lc *lockContext) context.Context {
	return context.WithValue(ctx, lockContextKey{}, lc)
}

// holds reports whether the call chain already owns the named lock.
func (lc *lockContext) holds(lockName string) bool {
	if lc == nil {
		return false
	}
	_, ok := lc.names[lockName]
	return ok
}

var errNoTransaction = errors.New("no transaction in lock context")
