// Package maintenance runs periodic housekeeping over every live tenant.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs/tenants"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// TenantSource lists live tenants and resolves their schedulers.
// *tenants.Manager satisfies it.
type TenantSource interface {
	Tenants() []tenant.Context
	GetSchedulerForContext(ctx context.Context, tc tenant.Context) (*tenants.TenantScheduler, error)
}

// PurgeOptions configures a Purger
type PurgeOptions struct {
	Schedule string        // Standard cron spec or descriptor such as @daily
	After    time.Duration // Executions created longer ago than this are purged
	Statuses []jobs.JobStatus
	Logger   *zap.SugaredLogger
}

// Purger deletes old finished executions on a cron schedule
type Purger struct {
	tenants  TenantSource
	schedule cron.Schedule
	spec     string
	after    time.Duration
	statuses []jobs.JobStatus
	logger   *zap.SugaredLogger
	now      func() time.Time

	cron *cron.Cron
}

// NewPurger validates the schedule and creates a stopped purger.
// Only terminal executions are purged unless Statuses says otherwise.
func NewPurger(src TenantSource, opts PurgeOptions) (*Purger, error) {
	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid purge schedule %q", opts.Schedule)
	}
	if opts.After <= 0 {
		return nil, errors.Newf("purge age must be positive, got %s", opts.After)
	}

	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCancelled}
	}
	for _, st := range statuses {
		if !st.IsTerminal() {
			return nil, errors.Newf("refusing to purge non-terminal status %s", st)
		}
	}

	return &Purger{
		tenants:  src,
		schedule: schedule,
		spec:     opts.Schedule,
		after:    opts.After,
		statuses: statuses,
		logger:   logger.OrDefault(opts.Logger).Named("purger"),
		now:      time.Now,
	}, nil
}

// Next returns when the schedule fires after t
func (p *Purger) Next(t time.Time) time.Time {
	return p.schedule.Next(t)
}

// Start runs RunOnce on the schedule until Stop
func (p *Purger) Start(ctx context.Context) {
	if p.cron != nil {
		return
	}
	p.cron = cron.New()
	p.cron.Schedule(p.schedule, cron.FuncJob(func() {
		if _, err := p.RunOnce(ctx); err != nil {
			p.logger.Errorw("Scheduled purge failed", logger.FieldError, err)
		}
	}))
	p.cron.Start()
	p.logger.Infow("Purger started", "schedule", p.spec, "after", p.after)
}

// Stop waits for a running purge to finish or ctx to expire
func (p *Purger) Stop(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}
	stopped := p.cron.Stop()
	p.cron = nil

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "purge still running")
	}
}

// RunOnce purges every live tenant. A failing tenant does not stop the others.
func (p *Purger) RunOnce(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.after)

	var (
		total  int
		result error
	)
	for _, tc := range p.tenants.Tenants() {
		ts, err := p.tenants.GetSchedulerForContext(ctx, tc)
		if err != nil {
			result = errors.CombineErrors(result, err)
			continue
		}
		n, err := ts.Scheduler.PurgeExecutions(ctx, cutoff, p.statuses)
		if err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "purge tenant %s", tc))
			continue
		}
		total += n
	}

	p.logger.Infow("Purge finished", logger.FieldCount, total, "cutoff", cutoff)
	return total, result
}
