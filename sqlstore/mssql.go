package sqlstore

import (
	"fmt"
	"strings"
)

// MSSQLDelegate implements the Delegate interface for SQL Server:
// SELECT TOP n instead of a LIMIT clause and UPDLOCK row-locking hints
// instead of FOR UPDATE.
type MSSQLDelegate struct {
	StdDelegate
}

var _ Delegate = (*MSSQLDelegate)(nil)

// NewMSSQLDelegate returns a new MSSQLDelegate.
func NewMSSQLDelegate() *MSSQLDelegate { return &MSSQLDelegate{} }

// Name returns the name of the delegate.
func (d *MSSQLDelegate) Name() string { return "mssql" }

// LimitQuery restricts the query to return at most limit rows.
func (d *MSSQLDelegate) LimitQuery(query string, limit int) string {
	return strings.Replace(query, "SELECT ",
		fmt.Sprintf("SELECT TOP %d ", limit), 1)
}

// SelectForLockSQL returns the row-locking select template.
func (d *MSSQLDelegate) SelectForLockSQL() string {
	return `SELECT * FROM {0}LOCKS WITH (UPDLOCK, ROWLOCK)
 WHERE SCHED_NAME = '{1}' AND LOCK_NAME = ?`
}
