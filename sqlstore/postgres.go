package sqlstore

import (
	"context"
	"time"

	// PostgreSQL driver, registered for the "postgres" data source type.
	_ "github.com/lib/pq"
)

// PostgreSQLDelegate implements the Delegate interface for PostgreSQL:
// numbered placeholders and an epoch read of the database clock.
type PostgreSQLDelegate struct {
	StdDelegate
}

var _ Delegate = (*PostgreSQLDelegate)(nil)

// NewPostgreSQLDelegate returns a new PostgreSQLDelegate.
func NewPostgreSQLDelegate() *PostgreSQLDelegate { return &PostgreSQLDelegate{} }

// Name returns the name of the delegate.
func (d *PostgreSQLDelegate) Name() string { return "postgres" }

// Rebind converts ?-style placeholders to numbered $n placeholders.
func (d *PostgreSQLDelegate) Rebind(query string) string {
	return rebindPositional(query)
}

// CurrentTime reads the database clock.
func (d *PostgreSQLDelegate) CurrentTime(ctx context.Context, q querier) (time.Time, error) {
	var millis int64
	err := q.QueryRowContext(ctx,
		"SELECT CAST(EXTRACT(EPOCH FROM CURRENT_TIMESTAMP) * 1000 AS BIGINT)").
		Scan(&millis)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}
