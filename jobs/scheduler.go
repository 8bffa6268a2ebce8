package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/db"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// DefaultMaxTriggerDepth bounds how many jobs one external event may chain through
const DefaultMaxTriggerDepth = 8

// ErrInterrupted is recorded on executions a shutdown cut off
var ErrInterrupted = errors.New("interrupted by scheduler shutdown")

// Options configures a Scheduler
type Options struct {
	Tenant          tenant.Context
	Registry        *Registry // nil creates a private registry
	Logger          *zap.SugaredLogger
	Metrics         *Metrics
	MaxConcurrent   int // 0 means unbounded
	MaxTriggerDepth int // 0 uses DefaultMaxTriggerDepth
}

// QueueOptions carries per-request hints
type QueueOptions struct {
	Priority string `json:"priority,omitempty"`
}

// QueueRequest asks for one execution of a registered job
type QueueRequest struct {
	Name    string       `json:"name"`
	Params  any          `json:"params"`
	Options QueueOptions `json:"options,omitempty"`
}

// QueueResult is returned as soon as the execution row exists
type QueueResult struct {
	JobID   string `json:"jobId"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// ExecutionStats counts executions by status
type ExecutionStats struct {
	Total    int               `json:"total"`
	ByStatus map[JobStatus]int `json:"byStatus"`
}

// Scheduler queues and runs jobs for one tenant, persisting every transition
// to its Store and publishing lifecycle events on its EventBus.
//
// Handlers run on their own goroutines. QueueJob never waits for them.
type Scheduler struct {
	tenant   tenant.Context
	registry *Registry
	store    Store
	bus      *EventBus
	logger   *zap.SugaredLogger
	metrics  *Metrics
	maxDepth int
	sem      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	mu      sync.Mutex
	running map[string]context.CancelFunc

	removeListener func()
}

// NewScheduler creates a scheduler bound to store and bus and starts
// listening for auto-trigger events
func NewScheduler(store Store, bus *EventBus, opts Options) *Scheduler {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	maxDepth := opts.MaxTriggerDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTriggerDepth
	}

	log := logger.OrDefault(opts.Logger).Named("scheduler")
	if !opts.Tenant.IsZero() {
		log = log.With(opts.Tenant.LogFields()...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		tenant:   opts.Tenant,
		registry: registry,
		store:    store,
		bus:      bus,
		logger:   log,
		metrics:  opts.Metrics,
		maxDepth: maxDepth,
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	s.removeListener = bus.On(s.onEvent)
	return s
}

// RegisterJob adds a definition. Duplicate names are rejected.
func (s *Scheduler) RegisterJob(def JobDefinition) error {
	if err := s.registry.Register(def); err != nil {
		return err
	}
	s.logger.Debugw("Registered job", logger.FieldJobName, def.Name, "trigger_events", def.TriggerEvents)
	return nil
}

// ListJobs returns the metadata of every registered definition
func (s *Scheduler) ListJobs() []DefinitionInfo {
	defs := s.registry.List()
	infos := make([]DefinitionInfo, len(defs))
	for i, d := range defs {
		infos[i] = d.Info()
	}
	return infos
}

// GetEventEmitter returns the bus this scheduler is bound to
func (s *Scheduler) GetEventEmitter() *EventBus {
	return s.bus
}

// Tenant returns the tenant this scheduler serves
func (s *Scheduler) Tenant() tenant.Context {
	return s.tenant
}

// QueueJob validates params, creates a pending execution and schedules it.
// Invalid params are rejected before any execution row exists.
func (s *Scheduler) QueueJob(ctx context.Context, req QueueRequest) (*QueueResult, error) {
	return s.queue(ctx, req, nil)
}

func (s *Scheduler) queue(ctx context.Context, req QueueRequest, chain []string) (*QueueResult, error) {
	if s.closed.Load() {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "scheduler is shut down")
	}

	def := s.registry.Get(req.Name)
	if def == nil {
		err := errors.NewNotFoundError("job not registered: %s", req.Name)
		return nil, errors.WithDetail(err, fmt.Sprintf("Job name: %s", req.Name))
	}

	params, err := marshalParams(req.Params)
	if err != nil {
		err = errors.Wrap(errors.ErrInvalidRequest, err.Error())
		return nil, errors.WithDetail(err, fmt.Sprintf("Job name: %s", req.Name))
	}
	if def.Schema != nil {
		if err := def.Schema.Validate(params); err != nil {
			err = errors.Wrapf(err, "invalid params for job %s", req.Name)
			return nil, errors.WithDetail(err, fmt.Sprintf("Job name: %s", req.Name))
		}
	}

	exec := NewExecution(def.Name, params)
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		err = errors.Wrap(err, "failed to queue job")
		return nil, errors.WithDetail(err, fmt.Sprintf("Job name: %s", req.Name))
	}
	s.metrics.RecordQueued(def.Name)

	s.logger.Infow("Job queued",
		logger.FieldJobID, exec.ID,
		logger.FieldJobName, def.Name,
		"priority", req.Options.Priority,
	)
	s.dispatch(exec, def, chain)

	return &QueueResult{JobID: exec.ID, Name: def.Name, Message: "Job queued"}, nil
}

// CancelJob marks a non-terminal execution cancelled and signals its handler.
// Returns false when the execution had already finished.
func (s *Scheduler) CancelJob(ctx context.Context, id string) (bool, error) {
	exec, err := s.store.GetExecution(ctx, id)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	ok, err := s.store.TransitionStatus(ctx, id, cancelTransition(now))
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debugw("Cancel ignored, execution already terminal",
			logger.FieldJobID, id,
			logger.FieldStatus, exec.Status,
		)
		return false, nil
	}

	s.mu.Lock()
	if cancel, running := s.running[id]; running {
		cancel()
	}
	s.mu.Unlock()

	s.metrics.RecordFinished(exec.Name, JobStatusCancelled, now.Sub(exec.CreatedAt))
	s.logger.Infow("Job cancelled", logger.FieldJobID, id, logger.FieldJobName, exec.Name)

	def := s.registry.Get(exec.Name)
	if def == nil {
		def = &JobDefinition{Name: exec.Name}
	}
	s.publishLifecycle(ctx, EventJobCancelled, def, id, nil, nil)
	return true, nil
}

// RetryJob creates a new execution of a failed or cancelled one and runs it
func (s *Scheduler) RetryJob(ctx context.Context, id string) (*QueueResult, error) {
	if s.closed.Load() {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "scheduler is shut down")
	}

	original, err := s.store.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if !original.Status.Retryable() {
		err := errors.NewInvalidRequestError("job %s cannot be retried (status: %s)", id, original.Status)
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
		return nil, errors.WithDetail(err, fmt.Sprintf("Current status: %s", original.Status))
	}

	def := s.registry.Get(original.Name)
	if def == nil {
		err := errors.NewNotFoundError("job not registered: %s", original.Name)
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}

	exec := NewRetryExecution(original)
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		err = errors.Wrap(err, "failed to create retry execution")
		return nil, errors.WithDetail(err, fmt.Sprintf("Source job ID: %s", id))
	}
	s.metrics.RecordQueued(def.Name)

	s.logger.Infow("Job retry queued",
		logger.FieldJobID, exec.ID,
		logger.FieldJobName, def.Name,
		"source_job_id", id,
		"retry_count", exec.RetryCount,
	)
	s.dispatch(exec, def, nil)

	return &QueueResult{JobID: exec.ID, Name: def.Name, Message: "Job retry queued"}, nil
}

// PinJob keeps the execution's dashboard card visible
func (s *Scheduler) PinJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.store.SetPinned(ctx, id, &now)
}

// UnpinJob clears the pin
func (s *Scheduler) UnpinJob(ctx context.Context, id string) error {
	return s.store.SetPinned(ctx, id, nil)
}

// DismissJob hides the execution's card for all users
func (s *Scheduler) DismissJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.store.SetDismissed(ctx, id, &now)
}

// GetExecution returns one execution with its logs
func (s *Scheduler) GetExecution(ctx context.Context, id string) (*JobExecution, error) {
	return s.store.GetExecution(ctx, id)
}

// ListExecutions returns execution history, newest first
func (s *Scheduler) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*JobExecution, error) {
	return s.store.ListExecutions(ctx, filter)
}

// ExecutionStats counts executions by status, skipping definitions flagged ExcludeFromStats
func (s *Scheduler) ExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	execs, err := s.store.ListExecutions(ctx, ExecutionFilter{IncludeDismissed: true})
	if err != nil {
		return nil, err
	}

	excluded := s.registry.excludedFromStats()
	stats := &ExecutionStats{ByStatus: make(map[JobStatus]int)}
	for _, e := range execs {
		if excluded[e.Name] {
			continue
		}
		stats.Total++
		stats.ByStatus[e.Status]++
	}
	return stats, nil
}

// PurgeExecutions deletes executions created before olderThan in the given statuses
func (s *Scheduler) PurgeExecutions(ctx context.Context, olderThan time.Time, statuses []JobStatus) (int, error) {
	n, err := s.store.PurgeExecutions(ctx, olderThan, statuses)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("Purged job executions", logger.FieldCount, n, "older_than", olderThan)
	return n, nil
}

// Drain waits until every dispatched execution has returned
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "timed out waiting for running jobs")
	}
}

// Shutdown stops auto-triggering, rejects new work, signals running
// handlers and waits for them
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.removeListener()
	s.cancel()

	err := s.Drain(ctx)
	if err != nil {
		s.logger.Warnw("Scheduler shutdown did not drain", logger.FieldError, err)
	}
	return err
}

// dispatch runs the execution asynchronously
func (s *Scheduler) dispatch(exec *JobExecution, def *JobDefinition, chain []string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			case <-s.ctx.Done():
				s.abandon(exec, def, chain)
				return
			}
		}
		s.execute(exec, def, chain)
	}()
}

// abandon cancels a pending execution released by shutdown before it got a slot
func (s *Scheduler) abandon(exec *JobExecution, def *JobDefinition, chain []string) {
	ctx := context.WithoutCancel(s.ctx)
	log := logger.ChildLogger(s.logger, logger.FieldJobID, exec.ID, logger.FieldJobName, def.Name)

	now := time.Now().UTC()
	ok, err := s.store.TransitionStatus(ctx, exec.ID, abandonTransition(now, ErrInterrupted))
	if err != nil {
		logStoreError(log, "Failed to mark waiting job cancelled", err)
		return
	}
	if !ok {
		return
	}
	s.metrics.RecordFinished(def.Name, JobStatusCancelled, now.Sub(exec.CreatedAt))
	log.Infow("Waiting job cancelled by shutdown")
	s.publishLifecycle(ctx, EventJobCancelled, def, exec.ID, chain, nil)
}

// RecoverInterrupted fails every pending or active execution in the store.
// Call it once, before any work is queued, on a store no other live
// scheduler is writing to. Recovered executions become retryable.
func (s *Scheduler) RecoverInterrupted(ctx context.Context) (int, error) {
	var orphaned []*JobExecution
	for _, status := range nonTerminal {
		execs, err := s.store.ListExecutions(ctx, ExecutionFilter{Status: status, IncludeDismissed: true})
		if err != nil {
			return 0, errors.Wrapf(err, "failed to list %s executions", status)
		}
		orphaned = append(orphaned, execs...)
	}
	if len(orphaned) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	recovered := 0
	for _, exec := range orphaned {
		ok, err := s.store.TransitionStatus(ctx, exec.ID, interruptTransition(now, ErrInterrupted))
		if err != nil {
			s.logger.Warnw("Failed to recover interrupted job",
				logger.FieldJobID, exec.ID,
				logger.FieldError, err,
			)
			continue
		}
		if ok {
			s.metrics.RecordFinished(exec.Name, JobStatusFailed, now.Sub(exec.CreatedAt))
			recovered++
		}
	}
	s.logger.Infow("Recovered interrupted jobs", logger.FieldCount, recovered)
	return recovered, nil
}

func (s *Scheduler) execute(exec *JobExecution, def *JobDefinition, chain []string) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	// Store writes must land even when the handler context is cancelled
	storeCtx := context.WithoutCancel(runCtx)

	s.mu.Lock()
	s.running[exec.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, exec.ID)
		s.mu.Unlock()
	}()

	log := logger.ChildLogger(s.logger, logger.FieldJobID, exec.ID, logger.FieldJobName, def.Name)

	started := time.Now().UTC()
	ok, err := s.store.TransitionStatus(storeCtx, exec.ID, startTransition(started))
	if err != nil {
		logStoreError(log, "Failed to mark job active", err)
		return
	}
	if !ok {
		log.Debugw("Job no longer pending, not starting")
		return
	}
	s.publishLifecycle(storeCtx, EventJobStarted, def, exec.ID, chain, nil)

	jc := newJobContext(s, def, exec.ID, chain, runCtx.Done())
	herr := invokeHandler(runCtx, def, jc, exec.Params)
	finished := time.Now().UTC()
	duration := finished.Sub(started)

	if herr == nil {
		ok, err = s.store.TransitionStatus(storeCtx, exec.ID, completeTransition(finished))
		if err != nil {
			logStoreError(log, "Failed to mark job completed", err)
			return
		}
		if !ok {
			log.Infow("Job finished after cancellation, keeping cancelled status")
			return
		}
		s.metrics.RecordFinished(def.Name, JobStatusCompleted, duration)
		log.Infow("Job completed", logger.FieldDurationMS, duration.Milliseconds())
		info := jc.getCompletionInfo()
		s.publishLifecycle(storeCtx, EventJobCompleted, def, exec.ID, chain, func(le *LifecycleEvent) {
			le.CompletionInfo = info
		})
		return
	}

	if s.closed.Load() && errors.Is(herr, context.Canceled) {
		herr = errors.Wrap(herr, ErrInterrupted.Error())
	}
	ok, err = s.store.TransitionStatus(storeCtx, exec.ID, failTransition(finished, herr, errors.StackString(herr)))
	if err != nil {
		logStoreError(log, "Failed to mark job failed", err)
		return
	}
	if !ok {
		log.Infow("Job failed after cancellation, keeping cancelled status", logger.FieldError, herr)
		return
	}
	s.metrics.RecordFinished(def.Name, JobStatusFailed, duration)
	log.Warnw("Job failed", logger.FieldError, herr, logger.FieldDurationMS, duration.Milliseconds())
	s.publishLifecycle(storeCtx, EventJobFailed, def, exec.ID, chain, func(le *LifecycleEvent) {
		le.Error = herr.Error()
	})
}

// invokeHandler runs the handler, turning a panic into an error
func invokeHandler(ctx context.Context, def *JobDefinition, jc *JobContext, params json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "job handler panicked")
			} else {
				err = errors.Newf("job handler panicked: %s", errors.SafeString(r))
			}
		}
	}()
	return def.Handler(ctx, jc, params)
}

// publishLifecycle emits a job:* event. Lifecycle events carry the
// execution's chain so a definition triggered by its own lifecycle is caught.
func (s *Scheduler) publishLifecycle(ctx context.Context, eventType string, def *JobDefinition, jobID string, chain []string, fill func(*LifecycleEvent)) {
	now := time.Now().UTC()
	le := LifecycleEvent{
		Type:                    eventType,
		JobID:                   jobID,
		Name:                    def.Name,
		ShowInDashboard:         def.ShowInDashboard,
		KeepCardAfterCompletion: def.KeepCardAfterCompletion,
		Timestamp:               now,
	}
	if fill != nil {
		fill(&le)
	}

	evChain := make([]string, 0, len(chain)+1)
	evChain = append(evChain, chain...)
	if len(evChain) == 0 || evChain[len(evChain)-1] != def.Name {
		evChain = append(evChain, def.Name)
	}
	s.bus.Publish(ctx, Event{
		Name:        eventType,
		Data:        le,
		Timestamp:   now,
		SourceJobID: jobID,
		Chain:       evChain,
	})
}

// onEvent is the auto-trigger listener. It runs inside Publish, so every
// resulting QueueJob call happens before the publisher regains control.
func (s *Scheduler) onEvent(ctx context.Context, e Event) {
	for _, def := range s.registry.List() {
		if !s.shouldTrigger(def, e) {
			continue
		}
		if reason := s.loopReason(def.Name, e); reason != "" {
			s.preventLoop(ctx, def.Name, e, reason)
			continue
		}

		result, err := s.queue(ctx, QueueRequest{Name: def.Name, Params: e.Data}, e.Chain)
		if err != nil {
			s.logger.Warnw("Auto-trigger failed to queue job",
				logger.FieldEvent, e.Name,
				logger.FieldJobName, def.Name,
				logger.FieldError, err,
			)
			continue
		}
		s.logger.Debugw("Auto-triggered job",
			logger.FieldEvent, e.Name,
			logger.FieldJobName, def.Name,
			logger.FieldJobID, result.JobID,
		)
	}
}

// shouldTrigger evaluates the definition's predicate; a panicking predicate does not trigger
func (s *Scheduler) shouldTrigger(def *JobDefinition, e Event) (trigger bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Trigger predicate panicked",
				logger.FieldJobName, def.Name,
				logger.FieldEvent, e.Name,
				logger.FieldError, errors.SafeString(r),
			)
			trigger = false
		}
	}()
	return def.TriggeredBy(e.Name, e.Data)
}

func (s *Scheduler) loopReason(name string, e Event) string {
	if e.inChain(name) {
		return fmt.Sprintf("job %s already in trigger chain %v for event %s", name, e.Chain, e.Name)
	}
	if len(e.Chain) >= s.maxDepth {
		return fmt.Sprintf("trigger chain depth %d reached for event %s", s.maxDepth, e.Name)
	}
	return ""
}

func (s *Scheduler) preventLoop(ctx context.Context, name string, e Event, reason string) {
	s.metrics.RecordLoopPrevented(name)
	s.logger.Warnw("Auto-trigger skipped to prevent loop",
		logger.FieldEvent, e.Name,
		logger.FieldJobName, name,
		"source_job_id", e.SourceJobID,
		"reason", reason,
	)
	if e.SourceJobID == "" {
		return
	}
	if err := s.store.MarkLoopPrevented(context.WithoutCancel(ctx), e.SourceJobID, reason); err != nil {
		s.logger.Errorw("Failed to record loop prevention",
			logger.FieldJobID, e.SourceJobID,
			logger.FieldError, err,
		)
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, errors.New("params are not valid JSON")
		}
		return p, nil
	case []byte:
		return marshalParams(json.RawMessage(p))
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal params")
		}
		return raw, nil
	}
}

// logStoreError reports a failed write. A store closed by shutdown is logged at debug.
func logStoreError(log *zap.SugaredLogger, msg string, err error) {
	if db.IsDatabaseClosed(err) {
		log.Debugw(msg+", store closed", logger.FieldError, err)
		return
	}
	log.Errorw(msg, logger.FieldError, err)
}
