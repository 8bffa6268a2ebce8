package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// SQLStore persists executions in the job_executions and job_logs tables
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over an already-migrated database
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateExecution inserts a new execution row
func (s *SQLStore) CreateExecution(ctx context.Context, exec *JobExecution) error {
	query := `
		INSERT INTO job_executions (
			id, name, params, status, retry_count, created_at,
			started_at, completed_at, error, error_stack, stats, completion_info,
			pinned_at, dismissed_at, source_job_id, loop_prevented, loop_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.Name,
		nullRaw(exec.Params),
		exec.Status,
		exec.RetryCount,
		exec.CreatedAt.UTC(),
		nullTime(exec.StartedAt),
		nullTime(exec.CompletedAt),
		nullString(exec.Error),
		nullString(exec.ErrorStack),
		nullRaw(exec.Stats),
		nullRaw(exec.CompletionInfo),
		nullTime(exec.PinnedAt),
		nullTime(exec.DismissedAt),
		nullString(exec.SourceJobID),
		exec.LoopPrevented,
		nullString(exec.LoopReason),
	)
	if err != nil {
		err = errors.Wrap(err, "failed to create job execution")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", exec.ID))
		return errors.WithDetail(err, fmt.Sprintf("Job name: %s", exec.Name))
	}

	for _, entry := range exec.Logs {
		if err := s.AppendLog(ctx, exec.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

// GetExecution loads an execution with its logs
func (s *SQLStore) GetExecution(ctx context.Context, id string) (*JobExecution, error) {
	query := `SELECT ` + executionSelectColumns + ` FROM job_executions WHERE id = ?`

	exec, err := scanExecution(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		err = errors.Wrap(err, "failed to get job execution")
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}

	logs, err := s.loadLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	exec.Logs = logs
	return exec, nil
}

// TransitionStatus updates the status only while it is still one of t.From
func (s *SQLStore) TransitionStatus(ctx context.Context, id string, t Transition) (bool, error) {
	if len(t.From) == 0 {
		return false, errors.NewInvalidRequestError("transition to %s has no source statuses", t.To)
	}

	placeholders := make([]string, len(t.From))
	args := []interface{}{
		t.To,
		nullTime(t.StartedAt),
		nullTime(t.CompletedAt),
		nullString(t.Error),
		nullString(t.ErrorStack),
		id,
	}
	for i, from := range t.From {
		placeholders[i] = "?"
		args = append(args, from)
	}

	query := `
		UPDATE job_executions
		SET status = ?,
		    started_at = COALESCE(?, started_at),
		    completed_at = COALESCE(?, completed_at),
		    error = COALESCE(?, error),
		    error_stack = COALESCE(?, error_stack)
		WHERE id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		err = errors.Wrap(err, "failed to transition job execution")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
		return false, errors.WithDetail(err, fmt.Sprintf("Target status: %s", t.To))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish a guard miss from a missing row
	if err := s.exists(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// AppendLog adds one log line
func (s *SQLStore) AppendLog(ctx context.Context, id string, entry LogEntry) error {
	var data sql.NullString
	if len(entry.Data) > 0 {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal log data")
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT INTO job_logs (job_id, timestamp, level, code, message, data) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, id, entry.Timestamp.UTC(), entry.Level, nullString(entry.Code), entry.Message, data)
	if err != nil {
		err = errors.Wrap(err, "failed to append job log")
		return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	return nil
}

// UpdateStats overwrites the stats snapshot
func (s *SQLStore) UpdateStats(ctx context.Context, id string, stats json.RawMessage) error {
	return s.update(ctx, id, "stats", nullRaw(stats))
}

// SetCompletionInfo stores the completion info reported with job:completed
func (s *SQLStore) SetCompletionInfo(ctx context.Context, id string, info json.RawMessage) error {
	return s.update(ctx, id, "completion_info", nullRaw(info))
}

// MarkLoopPrevented flags the execution whose event was not allowed to trigger further jobs
func (s *SQLStore) MarkLoopPrevented(ctx context.Context, id string, reason string) error {
	query := `UPDATE job_executions SET loop_prevented = 1, loop_reason = ? WHERE id = ?`
	return s.exec(ctx, id, "failed to mark loop prevented", query, reason, id)
}

// SetPinned sets or clears pinned_at
func (s *SQLStore) SetPinned(ctx context.Context, id string, at *time.Time) error {
	return s.update(ctx, id, "pinned_at", nullTime(at))
}

// SetDismissed sets or clears dismissed_at
func (s *SQLStore) SetDismissed(ctx context.Context, id string, at *time.Time) error {
	return s.update(ctx, id, "dismissed_at", nullTime(at))
}

// ListExecutions returns executions newest first, logs included
func (s *SQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*JobExecution, error) {
	var where []string
	var args []interface{}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.IncludeDismissed {
		where = append(where, "dismissed_at IS NULL")
	}

	query := `SELECT ` + executionSelectColumns + ` FROM job_executions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list job executions")
	}

	execs := make([]*JobExecution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan job execution")
		}
		execs = append(execs, exec)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "error iterating job executions")
	}

	// Logs load after rows is closed; the connection pool may hold a single connection
	for _, exec := range execs {
		logs, err := s.loadLogs(ctx, exec.ID)
		if err != nil {
			return nil, err
		}
		exec.Logs = logs
	}
	return execs, nil
}

// PurgeExecutions deletes executions created before olderThan. Empty statuses purges any status.
func (s *SQLStore) PurgeExecutions(ctx context.Context, olderThan time.Time, statuses []JobStatus) (int, error) {
	query := `DELETE FROM job_executions WHERE created_at < ?`
	args := []interface{}{olderThan.UTC()}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge job executions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	return int(n), nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) loadLogs(ctx context.Context, id string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, level, code, message, data FROM job_logs WHERE job_id = ? ORDER BY id ASC`, id)
	if err != nil {
		err = errors.Wrap(err, "failed to load job logs")
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	defer rows.Close()

	logs := make([]LogEntry, 0)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job log")
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job logs")
	}
	return logs, nil
}

// update sets a single column; column is always a literal from this file
func (s *SQLStore) update(ctx context.Context, id, column string, value interface{}) error {
	query := `UPDATE job_executions SET ` + column + ` = ? WHERE id = ?`
	return s.exec(ctx, id, "failed to update "+column, query, value, id)
}

func (s *SQLStore) exec(ctx context.Context, id, msg, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		err = errors.Wrap(err, msg)
		return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM job_executions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return errors.Wrap(err, "failed to check job execution")
	}
	return nil
}
