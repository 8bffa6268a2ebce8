// Package tenants resolves one isolated scheduler, event bus and job store
// per tenant/org. Nothing is shared across tenants and there is no default tenant.
package tenants

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// TenantScheduler is the bound triple serving one tenant/org
type TenantScheduler struct {
	Tenant    tenant.Context
	Scheduler *jobs.Scheduler
	Bus       *jobs.EventBus
	Store     jobs.Store
}

// SetupFunc registers job definitions on a freshly created scheduler.
// It runs under the manager's lock and must not call back into the Manager.
type SetupFunc func(ctx context.Context, ts *TenantScheduler) error

// BusAttacher is told about every new tenant bus (push fan-out, SSE)
type BusAttacher interface {
	Attach(tc tenant.Context, bus *jobs.EventBus)
}

// Options configures a Manager
type Options struct {
	Stores          StoreFactory // nil uses MemoryStoreFactory
	Setup           SetupFunc
	Attacher        BusAttacher
	Logger          *zap.SugaredLogger
	Metrics         *jobs.Metrics
	MaxConcurrent   int
	MaxTriggerDepth int

	// RecoverInterrupted fails executions a previous process left pending
	// or active when a tenant store is opened. Only the process that owns
	// the stores should set it.
	RecoverInterrupted bool
}

// Manager caches one TenantScheduler per tenant/org
type Manager struct {
	opts   Options
	logger *zap.SugaredLogger

	mu         sync.Mutex
	schedulers map[string]*TenantScheduler
	closed     bool
}

// NewManager creates an empty manager
func NewManager(opts Options) *Manager {
	if opts.Stores == nil {
		opts.Stores = MemoryStoreFactory{}
	}
	return &Manager{
		opts:       opts,
		logger:     logger.OrDefault(opts.Logger).Named("tenants"),
		schedulers: make(map[string]*TenantScheduler),
	}
}

// GetScheduler returns the scheduler for tenantID/orgID, creating it on first access
func (m *Manager) GetScheduler(ctx context.Context, tenantID, orgID string) (*TenantScheduler, error) {
	return m.GetSchedulerForContext(ctx, tenant.New(tenantID, orgID))
}

// GetSchedulerForContext returns the scheduler for tc, creating it on first access.
// An unresolved tenant is a hard error wrapping tenant.ErrNoTenantContext.
func (m *Manager) GetSchedulerForContext(ctx context.Context, tc tenant.Context) (*TenantScheduler, error) {
	if err := tc.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot resolve tenant scheduler")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, ok := m.schedulers[tc.Key()]; ok {
		return ts, nil
	}
	if m.closed {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "tenant manager is shut down")
	}

	ts, err := m.create(ctx, tc)
	if err != nil {
		err = errors.Wrapf(err, "failed to create scheduler for tenant %s", tc)
		err = errors.WithDetail(err, fmt.Sprintf("Tenant: %s", tc.TenantID))
		return nil, errors.WithDetail(err, fmt.Sprintf("Org: %s", tc.OrgID))
	}
	m.schedulers[tc.Key()] = ts
	return ts, nil
}

func (m *Manager) create(ctx context.Context, tc tenant.Context) (*TenantScheduler, error) {
	store, err := m.opts.Stores.Open(ctx, tc)
	if err != nil {
		return nil, err
	}

	log := logger.ChildLogger(m.logger, tc.LogFields()...)
	bus := jobs.NewEventBus(log)
	sched := jobs.NewScheduler(store, bus, jobs.Options{
		Tenant:          tc,
		Logger:          log,
		Metrics:         m.opts.Metrics,
		MaxConcurrent:   m.opts.MaxConcurrent,
		MaxTriggerDepth: m.opts.MaxTriggerDepth,
	})
	ts := &TenantScheduler{Tenant: tc, Scheduler: sched, Bus: bus, Store: store}

	if m.opts.RecoverInterrupted {
		if _, err := sched.RecoverInterrupted(ctx); err != nil {
			_ = sched.Shutdown(ctx)
			_ = store.Close()
			return nil, errors.Wrap(err, "failed to recover interrupted jobs")
		}
	}

	if m.opts.Setup != nil {
		if err := m.opts.Setup(ctx, ts); err != nil {
			_ = sched.Shutdown(ctx)
			_ = store.Close()
			return nil, errors.Wrap(err, "tenant scheduler setup failed")
		}
	}
	if m.opts.Attacher != nil {
		m.opts.Attacher.Attach(tc, bus)
	}

	log.Infow("Tenant scheduler created", logger.FieldCount, len(sched.ListJobs()))
	return ts, nil
}

// Tenants lists every tenant/org with a live scheduler, sorted
func (m *Manager) Tenants() []tenant.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]tenant.Context, 0, len(m.schedulers))
	for _, ts := range m.schedulers {
		out = append(out, ts.Tenant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Shutdown stops every scheduler and closes its store
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	schedulers := make([]*TenantScheduler, 0, len(m.schedulers))
	for _, ts := range m.schedulers {
		schedulers = append(schedulers, ts)
	}
	m.schedulers = make(map[string]*TenantScheduler)
	m.mu.Unlock()

	var result error
	for _, ts := range schedulers {
		if err := ts.Scheduler.Shutdown(ctx); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "tenant %s", ts.Tenant))
		}
		if err := ts.Store.Close(); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "close store for tenant %s", ts.Tenant))
		}
	}
	if result == nil {
		m.logger.Infow("Tenant schedulers shut down", logger.FieldCount, len(schedulers))
	}
	return result
}
