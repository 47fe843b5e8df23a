package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/quartz"
	"github.com/goquartz/quartz/sqlstore"
)

const lockSelectPattern = `SELECT \* FROM QRTZ_LOCKS\s+WHERE SCHED_NAME = 'TEST' AND LOCK_NAME = \? FOR UPDATE`

func newSemaphore(maxRetry int) *sqlstore.StdRowLockSemaphore {
	return sqlstore.NewStdRowLockSemaphoreWithOptions("QRTZ_", "TEST",
		sqlstore.StdRowLockSemaphoreOptions{
			MaxRetry:    maxRetry,
			RetryPeriod: 10 * time.Millisecond,
		})
}

func TestRowLockSemaphore_LockRowPresent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSelectPattern).
		WithArgs("TRIGGER_ACCESS").
		WillReturnRows(sqlmock.NewRows([]string{"SCHED_NAME", "LOCK_NAME"}).
			AddRow("TEST", "TRIGGER_ACCESS"))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	sem := newSemaphore(3)
	require.NoError(t, sem.ObtainLock(context.Background(), tx, "TRIGGER_ACCESS"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockSemaphore_InsertsMissingRowAndRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// first select finds no seat row; the semaphore inserts it and
	// retries the locking select
	mock.ExpectQuery(lockSelectPattern).
		WithArgs("STATE_ACCESS").
		WillReturnRows(sqlmock.NewRows([]string{"SCHED_NAME", "LOCK_NAME"}))
	mock.ExpectExec(`INSERT INTO QRTZ_LOCKS \(SCHED_NAME, LOCK_NAME\) VALUES \('TEST', \?\)`).
		WithArgs("STATE_ACCESS").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockSelectPattern).
		WithArgs("STATE_ACCESS").
		WillReturnRows(sqlmock.NewRows([]string{"SCHED_NAME", "LOCK_NAME"}).
			AddRow("TEST", "STATE_ACCESS"))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	sem := newSemaphore(3)
	require.NoError(t, sem.ObtainLock(context.Background(), tx, "STATE_ACCESS"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockSemaphore_FailsAfterMaxRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(lockSelectPattern).
			WithArgs("TRIGGER_ACCESS").
			WillReturnError(assert.AnError)
	}
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	sem := newSemaphore(2)
	err = sem.ObtainLock(context.Background(), tx, "TRIGGER_ACCESS")
	assert.ErrorIs(t, err, quartz.ErrLockAcquire)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockSemaphore_ContextCanceled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// the canceled context stops the locking select before it reaches the
	// driver, and the retry pause then returns the context error
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sem := newSemaphore(3)
	err = sem.ObtainLock(ctx, tx, "TRIGGER_ACCESS")
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, tx.Rollback())
}
