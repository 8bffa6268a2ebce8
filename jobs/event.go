package jobs

import (
	"strings"
	"time"
)

// Lifecycle event names published by the scheduler
const (
	EventJobStarted      = "job:started"
	EventJobCompleted    = "job:completed"
	EventJobFailed       = "job:failed"
	EventJobCancelled    = "job:cancelled"
	EventJobStatsUpdated = "job:stats-updated"
)

// Event is a named signal on a tenant's bus. Events are never persisted.
type Event struct {
	Name      string    `json:"name"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// SourceJobID is the execution whose handler emitted the event
	SourceJobID string `json:"sourceJobId,omitempty"`
	// Chain lists the job names whose handlers led to this event, oldest first
	Chain []string `json:"chain,omitempty"`
}

// IsLifecycle reports whether the event is one the scheduler publishes about itself
func (e Event) IsLifecycle() bool {
	return strings.HasPrefix(e.Name, "job:")
}

// inChain reports whether name already appears in the trigger chain
func (e Event) inChain(name string) bool {
	for _, n := range e.Chain {
		if n == name {
			return true
		}
	}
	return false
}

// LifecycleEvent is the payload of every job:* event
type LifecycleEvent struct {
	Type                    string    `json:"type"`
	JobID                   string    `json:"jobId"`
	Name                    string    `json:"name"`
	ShowInDashboard         bool      `json:"showInDashboard,omitempty"`
	KeepCardAfterCompletion bool      `json:"keepCardAfterCompletion,omitempty"`
	CompletionInfo          any       `json:"completionInfo,omitempty"`
	Error                   string    `json:"error,omitempty"`
	Stats                   any       `json:"stats,omitempty"`
	Timestamp               time.Time `json:"timestamp"`
}
