package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs/tenants"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

func lifecycle(typ, id string) jobs.Event {
	return jobs.Event{Name: typ, Data: jobs.LifecycleEvent{Type: typ, JobID: id, Name: "docs:build"}}
}

func shutdown(t *testing.T, p *Publisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestPublisher_ForwardsLifecycleEventsInOrder(t *testing.T) {
	sink := &MemorySink{}
	p := NewPublisher(Options{Sink: sink})
	p.Start(context.Background())

	tc := tenant.New("acme", "docs")
	bus := jobs.NewEventBus(nil)
	p.Attach(tc, bus)

	ctx := context.Background()
	bus.Publish(ctx, lifecycle(jobs.EventJobStarted, "a"))
	bus.Emit(ctx, "github:push", map[string]any{"ref": "refs/heads/main"})
	bus.Publish(ctx, lifecycle(jobs.EventJobCompleted, "a"))
	bus.Publish(ctx, lifecycle(jobs.EventJobStarted, "b"))

	shutdown(t, p)

	got := sink.Notifications()
	require.Len(t, got, 3, "non-lifecycle events are not forwarded")
	assert.Equal(t, []string{jobs.EventJobStarted, jobs.EventJobCompleted, jobs.EventJobStarted},
		[]string{got[0].Event.Type, got[1].Event.Type, got[2].Event.Type})
	assert.Equal(t, tc, got[0].Tenant)

	sent, dropped, failed := p.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)
}

type failingSink struct{ calls int }

func (f *failingSink) Send(context.Context, Notification) error {
	f.calls++
	if f.calls == 1 {
		panic("sink exploded")
	}
	return errors.New("sink offline")
}

func TestPublisher_SinkFailuresAreCounted(t *testing.T) {
	sink := &failingSink{}
	p := NewPublisher(Options{Sink: sink})
	p.Start(context.Background())
	bus := jobs.NewEventBus(nil)
	p.Attach(tenant.New("acme", "docs"), bus)

	bus.Publish(context.Background(), lifecycle(jobs.EventJobFailed, "a"))
	bus.Publish(context.Background(), lifecycle(jobs.EventJobFailed, "b"))
	shutdown(t, p)

	_, _, failed := p.Stats()
	assert.Equal(t, uint64(2), failed)
}

func TestPublisher_AttachBeforeStartIsIgnored(t *testing.T) {
	sink := &MemorySink{}
	p := NewPublisher(Options{Sink: sink})
	bus := jobs.NewEventBus(nil)
	p.Attach(tenant.New("acme", "docs"), bus)

	p.Start(context.Background())
	bus.Publish(context.Background(), lifecycle(jobs.EventJobStarted, "a"))
	shutdown(t, p)

	assert.Empty(t, sink.Notifications())
}

func TestPublisher_AttachedToEveryTenantScheduler(t *testing.T) {
	sink := &MemorySink{}
	p := NewPublisher(Options{Sink: sink, RatePerSec: 1000})
	p.Start(context.Background())

	m := tenants.NewManager(tenants.Options{
		Attacher: p,
		Setup: func(ctx context.Context, ts *tenants.TenantScheduler) error {
			return ts.Scheduler.RegisterJob(jobs.Define("docs:build", func(context.Context, *jobs.JobContext, struct{}) error {
				return nil
			}).Build())
		},
	})

	ctx := context.Background()
	for _, tc := range []tenant.Context{tenant.New("acme", "docs"), tenant.New("globex", "docs")} {
		ts, err := m.GetSchedulerForContext(ctx, tc)
		require.NoError(t, err)
		_, err = ts.Scheduler.QueueJob(ctx, jobs.QueueRequest{Name: "docs:build"})
		require.NoError(t, err)
		require.NoError(t, ts.Scheduler.Drain(ctx))
	}
	require.NoError(t, m.Shutdown(ctx))
	shutdown(t, p)

	byTenant := map[string][]string{}
	for _, n := range sink.Notifications() {
		byTenant[n.Tenant.TenantID] = append(byTenant[n.Tenant.TenantID], n.Event.Type)
	}
	want := []string{jobs.EventJobStarted, jobs.EventJobCompleted}
	assert.Equal(t, want, byTenant["acme"])
	assert.Equal(t, want, byTenant["globex"])
}

func TestPublisher_ShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, NewPublisher(Options{}).Shutdown(context.Background()))
}
