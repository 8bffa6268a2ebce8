package tenants

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

type recordingAttacher struct {
	mu      sync.Mutex
	tenants []tenant.Context
}

func (r *recordingAttacher) Attach(tc tenant.Context, bus *jobs.EventBus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tc)
}

func countingSetup(t *testing.T) SetupFunc {
	return func(ctx context.Context, ts *TenantScheduler) error {
		return ts.Scheduler.RegisterJob(jobs.Define("demo:count", func(ctx context.Context, jc *jobs.JobContext, p struct{}) error {
			jc.Log(ctx, "counted", map[string]any{"tenant": jc.Tenant().TenantID}, jobs.LogLevelInfo)
			return nil
		}).TriggerOn("demo:event").Build())
	}
}

func shutdown(t *testing.T, m *Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManager_CachesPerTenant(t *testing.T) {
	attacher := &recordingAttacher{}
	m := NewManager(Options{Setup: countingSetup(t), Attacher: attacher})
	defer shutdown(t, m)
	ctx := context.Background()

	a1, err := m.GetScheduler(ctx, "acme", "docs")
	require.NoError(t, err)
	a2, err := m.GetSchedulerForContext(ctx, tenant.New(" acme ", "docs"))
	require.NoError(t, err)
	b, err := m.GetScheduler(ctx, "globex", "docs")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1.Scheduler, b.Scheduler)
	assert.NotSame(t, a1.Bus, b.Bus)
	assert.Equal(t, []tenant.Context{tenant.New("acme", "docs"), tenant.New("globex", "docs")}, m.Tenants())
	assert.Len(t, attacher.tenants, 2, "each bus is attached once")
}

func TestManager_EventsNeverCrossTenants(t *testing.T) {
	m := NewManager(Options{Setup: countingSetup(t)})
	defer shutdown(t, m)
	ctx := context.Background()

	a, err := m.GetScheduler(ctx, "acme", "docs")
	require.NoError(t, err)
	b, err := m.GetScheduler(ctx, "globex", "docs")
	require.NoError(t, err)

	a.Bus.Emit(ctx, "demo:event", nil)
	require.NoError(t, a.Scheduler.Drain(ctx))
	require.NoError(t, b.Scheduler.Drain(ctx))

	aExecs, err := a.Scheduler.ListExecutions(ctx, jobs.ExecutionFilter{})
	require.NoError(t, err)
	bExecs, err := b.Scheduler.ListExecutions(ctx, jobs.ExecutionFilter{})
	require.NoError(t, err)

	assert.Len(t, aExecs, 1)
	assert.Empty(t, bExecs)

	_, err = b.Scheduler.GetExecution(ctx, aExecs[0].ID)
	assert.True(t, errors.IsNotFoundError(err), "tenant B cannot see tenant A's executions")
}

func TestManager_MissingTenantFailsLoudly(t *testing.T) {
	m := NewManager(Options{})
	defer shutdown(t, m)

	for _, tc := range []tenant.Context{
		{},
		{TenantID: "acme"},
		{OrgID: "docs"},
		{TenantID: "acme/evil", OrgID: "docs"},
	} {
		_, err := m.GetSchedulerForContext(context.Background(), tc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tenant.ErrNoTenantContext), "tenant %+v", tc)
	}
	assert.Empty(t, m.Tenants())
}

func TestManager_FailedSetupIsNotCached(t *testing.T) {
	attempts := 0
	m := NewManager(Options{Setup: func(ctx context.Context, ts *TenantScheduler) error {
		attempts++
		if attempts == 1 {
			return errors.New("registration failed")
		}
		return nil
	}})
	defer shutdown(t, m)

	_, err := m.GetScheduler(context.Background(), "acme", "docs")
	require.Error(t, err)
	assert.Empty(t, m.Tenants())

	_, err = m.GetScheduler(context.Background(), "acme", "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestManager_ShutdownRejectsNewTenants(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.GetScheduler(context.Background(), "acme", "docs")
	require.NoError(t, err)
	shutdown(t, m)

	_, err = m.GetScheduler(context.Background(), "acme", "docs")
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestSQLiteStoreFactory_OneFilePerTenant(t *testing.T) {
	dir := t.TempDir()
	factory := SQLiteStoreFactory{Dir: dir}
	m := NewManager(Options{Stores: factory, Setup: countingSetup(t)})
	defer shutdown(t, m)
	ctx := context.Background()

	a, err := m.GetScheduler(ctx, "acme", "docs")
	require.NoError(t, err)
	_, err = m.GetScheduler(ctx, "acme", "blog")
	require.NoError(t, err)

	result, err := a.Scheduler.QueueJob(ctx, jobs.QueueRequest{Name: "demo:count"})
	require.NoError(t, err)
	require.NoError(t, a.Scheduler.Drain(ctx))

	exec, err := a.Scheduler.GetExecution(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, exec.Status)
	require.Len(t, exec.Logs, 1)
	assert.Equal(t, "acme", exec.Logs[0].Data["tenant"])

	for _, org := range []string{"docs", "blog"} {
		_, err := os.Stat(filepath.Join(dir, "acme", org+".db"))
		assert.NoError(t, err, "database for org %s", org)
	}
}

func TestManager_RecoversInterruptedJobsOnOpen(t *testing.T) {
	factory := SQLiteStoreFactory{Dir: t.TempDir()}
	ctx := context.Background()
	tc := tenant.New("acme", "docs")

	// Rows a killed process left behind
	store, err := factory.Open(ctx, tc)
	require.NoError(t, err)
	pending := jobs.NewExecution("demo:count", nil)
	active := jobs.NewExecution("demo:count", nil)
	require.NoError(t, store.CreateExecution(ctx, pending))
	require.NoError(t, store.CreateExecution(ctx, active))
	_, err = store.TransitionStatus(ctx, active.ID, jobs.Transition{
		From: []jobs.JobStatus{jobs.JobStatusPending},
		To:   jobs.JobStatusActive,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Readers leave them alone
	reader := NewManager(Options{Stores: factory, Setup: countingSetup(t)})
	ts, err := reader.GetScheduler(ctx, "acme", "docs")
	require.NoError(t, err)
	exec, err := ts.Scheduler.GetExecution(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, exec.Status)
	shutdown(t, reader)

	m := NewManager(Options{Stores: factory, Setup: countingSetup(t), RecoverInterrupted: true})
	defer shutdown(t, m)
	ts, err = m.GetScheduler(ctx, "acme", "docs")
	require.NoError(t, err)

	for _, id := range []string{pending.ID, active.ID} {
		exec, err := ts.Scheduler.GetExecution(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, jobs.JobStatusFailed, exec.Status)
		assert.Equal(t, jobs.ErrInterrupted.Error(), exec.Error)
	}

	retry, err := ts.Scheduler.RetryJob(ctx, active.ID)
	require.NoError(t, err)
	require.NoError(t, ts.Scheduler.Drain(ctx))
	exec, err = ts.Scheduler.GetExecution(ctx, retry.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, exec.Status)
}
