// Package jobs provides job registration, asynchronous execution with a tracked
// lifecycle, and the per-tenant event bus that auto-triggers jobs.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of an execution
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []JobStatus{
	JobStatusPending, JobStatusActive, JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
}

// nonTerminal are the statuses a transition may start from
var nonTerminal = []JobStatus{JobStatusPending, JobStatusActive}

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusActive,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Retryable reports whether RetryJob accepts an execution in this status
func (s JobStatus) Retryable() bool {
	return s == JobStatusFailed || s == JobStatusCancelled
}

// LogLevel of a job log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is a single append-only line in an execution's log
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Code      string         `json:"code,omitempty"` // Machine-readable message code ("document-matched")
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// JobExecution is one queued run of a JobDefinition
type JobExecution struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Params         json.RawMessage `json:"params,omitempty"`
	Status         JobStatus       `json:"status"`
	Logs           []LogEntry      `json:"logs"`
	RetryCount     int             `json:"retryCount"`
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorStack     string          `json:"errorStack,omitempty"`
	Stats          json.RawMessage `json:"stats,omitempty"`          // Progress snapshot, overwritten on each update
	CompletionInfo json.RawMessage `json:"completionInfo,omitempty"` // Set by the handler, echoed in job:completed
	PinnedAt       *time.Time      `json:"pinnedAt,omitempty"`       // Keeps the dashboard card visible
	DismissedAt    *time.Time      `json:"dismissedAt,omitempty"`    // Hides the card from all users
	SourceJobID    string          `json:"sourceJobId,omitempty"`    // Original execution when created via retry
	LoopPrevented  bool            `json:"loopPrevented,omitempty"`
	LoopReason     string          `json:"loopReason,omitempty"`
}

// NewExecution creates a pending execution with a fresh id
func NewExecution(name string, params json.RawMessage) *JobExecution {
	return &JobExecution{
		ID:        uuid.NewString(),
		Name:      name,
		Params:    params,
		Status:    JobStatusPending,
		Logs:      []LogEntry{},
		CreatedAt: time.Now().UTC(),
	}
}

// NewRetryExecution creates the execution that retries original
func NewRetryExecution(original *JobExecution) *JobExecution {
	exec := NewExecution(original.Name, original.Params)
	exec.SourceJobID = original.ID
	exec.RetryCount = original.RetryCount + 1
	return exec
}

// Clone returns a deep copy so callers never share mutable state with a store
func (e *JobExecution) Clone() *JobExecution {
	if e == nil {
		return nil
	}
	c := *e
	c.Params = cloneRaw(e.Params)
	c.Stats = cloneRaw(e.Stats)
	c.CompletionInfo = cloneRaw(e.CompletionInfo)
	c.StartedAt = cloneTime(e.StartedAt)
	c.CompletedAt = cloneTime(e.CompletedAt)
	c.PinnedAt = cloneTime(e.PinnedAt)
	c.DismissedAt = cloneTime(e.DismissedAt)
	c.Logs = make([]LogEntry, len(e.Logs))
	copy(c.Logs, e.Logs)
	return &c
}

// Transition describes a conditional status change.
// It is applied only if the current status is one of From.
type Transition struct {
	From        []JobStatus
	To          JobStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
	ErrorStack  string
}

// allows reports whether the transition may start from status
func (t Transition) allows(status JobStatus) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// apply mutates exec, assuming allows() already returned true
func (t Transition) apply(exec *JobExecution) {
	exec.Status = t.To
	if t.StartedAt != nil {
		exec.StartedAt = cloneTime(t.StartedAt)
	}
	if t.CompletedAt != nil {
		exec.CompletedAt = cloneTime(t.CompletedAt)
	}
	if t.Error != "" {
		exec.Error = t.Error
	}
	if t.ErrorStack != "" {
		exec.ErrorStack = t.ErrorStack
	}
}

func startTransition(now time.Time) Transition {
	return Transition{From: []JobStatus{JobStatusPending}, To: JobStatusActive, StartedAt: &now}
}

func completeTransition(now time.Time) Transition {
	return Transition{From: []JobStatus{JobStatusActive}, To: JobStatusCompleted, CompletedAt: &now}
}

func failTransition(now time.Time, err error, stack string) Transition {
	return Transition{
		From:        []JobStatus{JobStatusActive},
		To:          JobStatusFailed,
		CompletedAt: &now,
		Error:       err.Error(),
		ErrorStack:  stack,
	}
}

func cancelTransition(now time.Time) Transition {
	return Transition{From: nonTerminal, To: JobStatusCancelled, CompletedAt: &now}
}

// abandonTransition cancels an execution that never got a worker slot
func abandonTransition(now time.Time, reason error) Transition {
	return Transition{
		From:        []JobStatus{JobStatusPending},
		To:          JobStatusCancelled,
		CompletedAt: &now,
		Error:       reason.Error(),
	}
}

// interruptTransition fails an execution a previous process left unfinished
func interruptTransition(now time.Time, reason error) Transition {
	return Transition{From: nonTerminal, To: JobStatusFailed, CompletedAt: &now, Error: reason.Error()}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	c := make(json.RawMessage, len(raw))
	copy(c, raw)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
