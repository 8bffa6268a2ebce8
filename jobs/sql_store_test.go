package jobs

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestSQLStore_TransitionCarriesStatusGuard(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)UPDATE job_executions\s+SET status = \?.*WHERE id = \? AND status IN \(\?, \?\)`).
		WithArgs(JobStatusCancelled, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"job-1", JobStatusPending, JobStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.TransitionStatus(context.Background(), "job-1", cancelTransition(now))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_TransitionGuardMiss(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE job_executions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM job_executions WHERE id = \?`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ok, err := store.TransitionStatus(context.Background(), "job-1", completeTransition(now))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_TransitionRequiresSourceStatuses(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.TransitionStatus(context.Background(), "job-1", Transition{To: JobStatusActive})
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestSQLStore_DriverErrorsAreWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	driverErr := errors.New("disk I/O error")

	mock.ExpectExec(`INSERT INTO job_executions`).WillReturnError(driverErr)

	exec := NewExecution("demo:work", nil)
	err := store.CreateExecution(context.Background(), exec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, driverErr))
	assert.Contains(t, err.Error(), "failed to create job execution")
	assert.Contains(t, errors.FlattenDetails(err), exec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListExecutionsQueryShape(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM job_executions WHERE name = \? AND status = \? AND dismissed_at IS NULL ORDER BY created_at DESC, rowid DESC LIMIT \? OFFSET \?`).
		WithArgs("demo:work", JobStatusFailed, 5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	execs, err := store.ListExecutions(context.Background(), ExecutionFilter{
		Name:   "demo:work",
		Status: JobStatusFailed,
		Limit:  5,
		Offset: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, execs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE job_executions SET stats = \? WHERE id = \?`).
		WithArgs(sqlmock.AnyArg(), "missing").
		WillReturnResult(driver.RowsAffected(0))

	err := store.UpdateStats(context.Background(), "missing", []byte(`{}`))
	assert.True(t, errors.IsNotFoundError(err))
}
