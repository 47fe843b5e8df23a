package sqlstore

import (
	"context"
	"time"

	// Pure-Go SQLite driver, registered for the "sqlite" data source type.
	_ "modernc.org/sqlite"
)

// SQLiteDelegate implements the Delegate interface for SQLite. SQLite
// has no FOR UPDATE; the locking select degrades to a plain select and
// mutual exclusion is provided by the database-level write transaction,
// which serializes cluster peers sharing the database file.
type SQLiteDelegate struct {
	StdDelegate
}

var _ Delegate = (*SQLiteDelegate)(nil)

// NewSQLiteDelegate returns a new SQLiteDelegate.
func NewSQLiteDelegate() *SQLiteDelegate { return &SQLiteDelegate{} }

// Name returns the name of the delegate.
func (d *SQLiteDelegate) Name() string { return "sqlite" }

// SelectForLockSQL returns the row-locking select template.
func (d *SQLiteDelegate) SelectForLockSQL() string {
	return `SELECT * FROM {0}LOCKS WHERE SCHED_NAME = '{1}' AND LOCK_NAME = ?`
}

// CurrentTime reads the database clock.
func (d *SQLiteDelegate) CurrentTime(ctx context.Context, q querier) (time.Time, error) {
	var millis int64
	err := q.QueryRowContext(ctx,
		"SELECT CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)").
		Scan(&millis)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}
