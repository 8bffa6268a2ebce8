package jobs

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists job executions for a single tenant/org.
// Status changes go through TransitionStatus so a cancel racing a completion
// leaves the first terminal status in place.
type Store interface {
	CreateExecution(ctx context.Context, exec *JobExecution) error
	GetExecution(ctx context.Context, id string) (*JobExecution, error)

	// TransitionStatus applies t only if the current status is in t.From.
	// Returns false, nil when the guard did not match.
	TransitionStatus(ctx context.Context, id string, t Transition) (bool, error)

	AppendLog(ctx context.Context, id string, entry LogEntry) error
	UpdateStats(ctx context.Context, id string, stats json.RawMessage) error
	SetCompletionInfo(ctx context.Context, id string, info json.RawMessage) error
	MarkLoopPrevented(ctx context.Context, id string, reason string) error

	// SetPinned and SetDismissed clear the flag when at is nil
	SetPinned(ctx context.Context, id string, at *time.Time) error
	SetDismissed(ctx context.Context, id string, at *time.Time) error

	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*JobExecution, error)
	PurgeExecutions(ctx context.Context, olderThan time.Time, statuses []JobStatus) (int, error)

	Close() error
}

// ExecutionFilter narrows ListExecutions. Results are newest first.
type ExecutionFilter struct {
	Name             string
	Status           JobStatus
	Limit            int // 0 means no limit
	Offset           int
	IncludeDismissed bool
}

func (f ExecutionFilter) matches(e *JobExecution) bool {
	if f.Name != "" && e.Name != f.Name {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.IncludeDismissed && e.DismissedAt != nil {
		return false
	}
	return true
}
