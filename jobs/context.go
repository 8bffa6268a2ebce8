package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// JobContext is handed to a running handler. Every call patches the
// execution row and may publish on the tenant's bus.
type JobContext struct {
	sched *Scheduler
	def   *JobDefinition
	jobID string
	// chain is attached to events this handler emits
	chain  []string
	done   <-chan struct{}
	logger *zap.SugaredLogger

	mu             sync.Mutex
	stats          map[string]any
	completionInfo any
}

func newJobContext(s *Scheduler, def *JobDefinition, jobID string, inbound []string, done <-chan struct{}) *JobContext {
	chain := make([]string, 0, len(inbound)+1)
	chain = append(chain, inbound...)
	chain = append(chain, def.Name)
	return &JobContext{
		sched:  s,
		def:    def,
		jobID:  jobID,
		chain:  chain,
		done:   done,
		logger: logger.ChildLogger(s.logger, logger.FieldJobID, jobID, logger.FieldJobName, def.Name),
		stats:  make(map[string]any),
	}
}

// JobID returns the id of the running execution
func (jc *JobContext) JobID() string { return jc.jobID }

// Name returns the job definition name
func (jc *JobContext) Name() string { return jc.def.Name }

// Tenant returns the tenant the execution belongs to
func (jc *JobContext) Tenant() tenant.Context { return jc.sched.tenant }

// Logger returns a process logger scoped to this execution
func (jc *JobContext) Logger() *zap.SugaredLogger { return jc.logger }

// Cancelled reports whether CancelJob was called for this execution or the
// scheduler is shutting down. Handlers check it at their own checkpoints.
func (jc *JobContext) Cancelled() bool {
	select {
	case <-jc.done:
		return true
	default:
		return false
	}
}

// Log appends a coded entry to the execution log and mirrors it to the process log
func (jc *JobContext) Log(ctx context.Context, code string, data map[string]any, level LogLevel) {
	jc.append(ctx, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Code:      code,
		Message:   code,
		Data:      data,
	})
}

// Logf appends a free-text entry to the execution log
func (jc *JobContext) Logf(ctx context.Context, level LogLevel, format string, args ...interface{}) {
	jc.append(ctx, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (jc *JobContext) append(ctx context.Context, entry LogEntry) {
	kv := make([]interface{}, 0, 2+2*len(entry.Data))
	if entry.Code != "" {
		kv = append(kv, "code", entry.Code)
	}
	for k, v := range entry.Data {
		kv = append(kv, k, v)
	}
	switch entry.Level {
	case LogLevelDebug:
		jc.logger.Debugw(entry.Message, kv...)
	case LogLevelWarn:
		jc.logger.Warnw(entry.Message, kv...)
	case LogLevelError:
		jc.logger.Errorw(entry.Message, kv...)
	default:
		jc.logger.Infow(entry.Message, kv...)
	}

	if err := jc.sched.store.AppendLog(context.WithoutCancel(ctx), jc.jobID, entry); err != nil {
		logStoreError(jc.logger, "Failed to persist job log", err)
	}
}

// EmitEvent publishes a named event attributed to this execution
func (jc *JobContext) EmitEvent(ctx context.Context, name string, payload any) {
	jc.sched.bus.Publish(ctx, Event{
		Name:        name,
		Data:        payload,
		SourceJobID: jc.jobID,
		Chain:       append([]string(nil), jc.chain...),
	})
}

// QueueJob queues another job on behalf of this one.
// The trigger chain carries over so loops are caught across hops.
func (jc *JobContext) QueueJob(ctx context.Context, req QueueRequest) (*QueueResult, error) {
	return jc.sched.queue(ctx, req, jc.chain)
}

// UpdateStats merges partial into the stats snapshot, persists it and
// publishes job:stats-updated
func (jc *JobContext) UpdateStats(ctx context.Context, partial map[string]any) error {
	jc.mu.Lock()
	for k, v := range partial {
		jc.stats[k] = v
	}
	snapshot := make(map[string]any, len(jc.stats))
	for k, v := range jc.stats {
		snapshot[k] = v
	}
	jc.mu.Unlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job stats")
	}
	if err := jc.sched.store.UpdateStats(context.WithoutCancel(ctx), jc.jobID, raw); err != nil {
		return err
	}

	jc.sched.publishLifecycle(ctx, EventJobStatsUpdated, jc.def, jc.jobID, jc.chain, func(le *LifecycleEvent) {
		le.Stats = snapshot
	})
	return nil
}

// SetCompletionInfo records info reported with job:completed
func (jc *JobContext) SetCompletionInfo(ctx context.Context, info any) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "failed to marshal completion info")
	}
	if err := jc.sched.store.SetCompletionInfo(context.WithoutCancel(ctx), jc.jobID, raw); err != nil {
		return err
	}

	jc.mu.Lock()
	jc.completionInfo = info
	jc.mu.Unlock()
	return nil
}

func (jc *JobContext) getCompletionInfo() any {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.completionInfo
}
