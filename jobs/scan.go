package jobs

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// executionSelectColumns is the column list every execution SELECT uses.
// Order must match executionScanTargets.
const executionSelectColumns = `id, name, params, status, retry_count, created_at,
	started_at, completed_at, error, error_stack, stats, completion_info,
	pinned_at, dismissed_at, source_job_id, loop_prevented, loop_reason`

// executionScanArgs holds the nullable columns of a job_executions row
type executionScanArgs struct {
	Params         sql.NullString
	StartedAt      sql.NullTime
	CompletedAt    sql.NullTime
	Error          sql.NullString
	ErrorStack     sql.NullString
	Stats          sql.NullString
	CompletionInfo sql.NullString
	PinnedAt       sql.NullTime
	DismissedAt    sql.NullTime
	SourceJobID    sql.NullString
	LoopReason     sql.NullString
}

func executionScanTargets(e *JobExecution, args *executionScanArgs) []interface{} {
	return []interface{}{
		&e.ID,
		&e.Name,
		&args.Params,
		&e.Status,
		&e.RetryCount,
		&e.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&args.Error,
		&args.ErrorStack,
		&args.Stats,
		&args.CompletionInfo,
		&args.PinnedAt,
		&args.DismissedAt,
		&args.SourceJobID,
		&e.LoopPrevented,
		&args.LoopReason,
	}
}

func (args *executionScanArgs) apply(e *JobExecution) {
	if args.Params.Valid {
		e.Params = json.RawMessage(args.Params.String)
	}
	e.StartedAt = nullTimePtr(args.StartedAt)
	e.CompletedAt = nullTimePtr(args.CompletedAt)
	e.Error = args.Error.String
	e.ErrorStack = args.ErrorStack.String
	if args.Stats.Valid {
		e.Stats = json.RawMessage(args.Stats.String)
	}
	if args.CompletionInfo.Valid {
		e.CompletionInfo = json.RawMessage(args.CompletionInfo.String)
	}
	e.PinnedAt = nullTimePtr(args.PinnedAt)
	e.DismissedAt = nullTimePtr(args.DismissedAt)
	e.SourceJobID = args.SourceJobID.String
	e.LoopReason = args.LoopReason.String
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*JobExecution, error) {
	var exec JobExecution
	var args executionScanArgs
	if err := row.Scan(executionScanTargets(&exec, &args)...); err != nil {
		return nil, err
	}
	args.apply(&exec)
	exec.Logs = []LogEntry{}
	return &exec, nil
}

func scanLogEntry(row rowScanner) (LogEntry, error) {
	var entry LogEntry
	var code, data sql.NullString
	if err := row.Scan(&entry.Timestamp, &entry.Level, &code, &entry.Message, &data); err != nil {
		return entry, err
	}
	entry.Code = code.String
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &entry.Data); err != nil {
			return entry, errors.Wrap(err, "failed to unmarshal log data")
		}
	}
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRaw(raw json.RawMessage) sql.NullString {
	return sql.NullString{String: string(raw), Valid: len(raw) > 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
