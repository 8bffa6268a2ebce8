package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// MemoryStore is a Store kept in process memory.
// Reads return copies.
type MemoryStore struct {
	mu    sync.RWMutex
	execs map[string]*JobExecution
	seq   map[string]int // insertion order breaks CreatedAt ties
	next  int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		execs: make(map[string]*JobExecution),
		seq:   make(map[string]int),
	}
}

func (s *MemoryStore) CreateExecution(_ context.Context, exec *JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.execs[exec.ID]; exists {
		err := errors.NewConflictError("execution already exists: %s", exec.ID)
		return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", exec.ID))
	}
	s.execs[exec.ID] = exec.Clone()
	s.seq[exec.ID] = s.next
	s.next++
	return nil
}

func (s *MemoryStore) GetExecution(_ context.Context, id string) (*JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.execs[id]
	if !ok {
		return nil, notFound(id)
	}
	return exec.Clone(), nil
}

func (s *MemoryStore) TransitionStatus(_ context.Context, id string, t Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.execs[id]
	if !ok {
		return false, notFound(id)
	}
	if !t.allows(exec.Status) {
		return false, nil
	}
	t.apply(exec)
	return true, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, id string, entry LogEntry) error {
	return s.mutate(id, func(e *JobExecution) { e.Logs = append(e.Logs, entry) })
}

func (s *MemoryStore) UpdateStats(_ context.Context, id string, stats json.RawMessage) error {
	return s.mutate(id, func(e *JobExecution) { e.Stats = cloneRaw(stats) })
}

func (s *MemoryStore) SetCompletionInfo(_ context.Context, id string, info json.RawMessage) error {
	return s.mutate(id, func(e *JobExecution) { e.CompletionInfo = cloneRaw(info) })
}

func (s *MemoryStore) MarkLoopPrevented(_ context.Context, id string, reason string) error {
	return s.mutate(id, func(e *JobExecution) {
		e.LoopPrevented = true
		e.LoopReason = reason
	})
}

func (s *MemoryStore) SetPinned(_ context.Context, id string, at *time.Time) error {
	return s.mutate(id, func(e *JobExecution) { e.PinnedAt = cloneTime(at) })
}

func (s *MemoryStore) SetDismissed(_ context.Context, id string, at *time.Time) error {
	return s.mutate(id, func(e *JobExecution) { e.DismissedAt = cloneTime(at) })
}

func (s *MemoryStore) ListExecutions(_ context.Context, filter ExecutionFilter) ([]*JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*JobExecution, 0)
	for _, e := range s.execs {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*JobExecution{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	result := make([]*JobExecution, len(out))
	for i, e := range out {
		result[i] = e.Clone()
	}
	return result, nil
}

func (s *MemoryStore) PurgeExecutions(_ context.Context, olderThan time.Time, statuses []JobStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[JobStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	purged := 0
	for id, e := range s.execs {
		if !e.CreatedAt.Before(olderThan) {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Status] {
			continue
		}
		delete(s.execs, id)
		delete(s.seq, id)
		purged++
	}
	return purged, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) mutate(id string, fn func(e *JobExecution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.execs[id]
	if !ok {
		return notFound(id)
	}
	fn(exec)
	return nil
}

func notFound(id string) error {
	err := errors.NewNotFoundError("job execution not found: %s", id)
	return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
}
