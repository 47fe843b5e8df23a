package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Delegate isolates driver-specific SQL behavior: placeholder style,
// row-count restriction, row-locking select and the database clock.
// The StdDelegate covers ANSI-ish databases; dialect delegates embed it
// and override what differs.
type Delegate interface {
	// Name returns the name of the delegate.
	Name() string

	// Rebind converts ?-style placeholders to the driver's style.
	Rebind(query string) string

	// LimitQuery restricts the query to return at most limit rows.
	LimitQuery(query string, limit int) string

	// SelectForLockSQL returns the row-locking select template of the
	// LOCKS table.
	SelectForLockSQL() string

	// CurrentTime reads the database clock. The cluster manager writes
	// heartbeats and detects failed peers against this clock; trigger
	// acquisition and misfire detection use the local clock.
	CurrentTime(ctx context.Context, q querier) (time.Time, error)
}

// StdDelegate implements the Delegate interface for databases with
// ?-style placeholders, LIMIT clauses and SELECT ... FOR UPDATE.
type StdDelegate struct{}

var _ Delegate = (*StdDelegate)(nil)

// NewStdDelegate returns a new StdDelegate.
func NewStdDelegate() *StdDelegate { return &StdDelegate{} }

// Name returns the name of the delegate.
func (d *StdDelegate) Name() string { return "std" }

// Rebind converts ?-style placeholders to the driver's style.
func (d *StdDelegate) Rebind(query string) string { return query }

// LimitQuery restricts the query to return at most limit rows.
func (d *StdDelegate) LimitQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

// SelectForLockSQL returns the row-locking select template.
func (d *StdDelegate) SelectForLockSQL() string { return sqlSelectForLock }

// CurrentTime reads the database clock.
func (d *StdDelegate) CurrentTime(ctx context.Context, q querier) (time.Time, error) {
	var now time.Time
	if err := q.QueryRowContext(ctx, "SELECT CURRENT_TIMESTAMP").Scan(&now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// rebindPositional converts ?-style placeholders to numbered $n
// placeholders, skipping quoted literals.
func rebindPositional(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for _, r := range query {
		switch {
		case r == '\'':
			inLiteral = !inLiteral
			sb.WriteRune(r)
		case r == '?' && !inLiteral:
			n++
			fmt.Fprintf(&sb, "$%d", n)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
