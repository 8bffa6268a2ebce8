// Package notify fans job lifecycle events out of every tenant bus to an
// external sink (push notifications, a live dashboard stream).
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// DefaultSendTimeout bounds one Sink.Send when Options.SendTimeout is 0
const DefaultSendTimeout = 10 * time.Second

// Enqueue failures
var (
	ErrStopped   = errors.New("publisher stopped")
	ErrQueueFull = errors.New("publisher queue full")
)

// Notification is one lifecycle event bound to its tenant
type Notification struct {
	Tenant tenant.Context      `json:"tenant"`
	Event  jobs.LifecycleEvent `json:"event"`
}

// Sink receives notifications in publish order
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Options configures a Publisher
type Options struct {
	Sink             Sink
	QueueSize        int     // default 512
	SubscriberBuffer int     // per tenant bus, default jobs.DefaultSubscriberBuffer
	RatePerSec       float64 // 0 disables rate limiting
	SendTimeout      time.Duration
	Logger           *zap.SugaredLogger
}

// Publisher forwards job:* events from attached buses to a Sink.
// A single worker preserves FIFO order per tenant.
type Publisher struct {
	opts    Options
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     chan Notification
	accepting bool
	closing   bool
	detach    []func()
	pumps     sync.WaitGroup
	worker    sync.WaitGroup
	runCancel context.CancelFunc

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewPublisher creates a stopped publisher
func NewPublisher(opts Options) *Publisher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 512
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = jobs.DefaultSubscriberBuffer
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	p := &Publisher{
		opts:   opts,
		logger: logger.OrDefault(opts.Logger).Named("notify"),
	}
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return p
}

// Start launches the delivery worker. Calling Start twice is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.queue = make(chan Notification, p.opts.QueueSize)
	p.accepting = true
	p.closing = false
	p.runCancel = cancel

	q := p.queue
	p.worker.Add(1)
	go func() {
		defer p.worker.Done()
		p.workerLoop(runCtx, q)
	}()
}

// Attach forwards the lifecycle events of bus until Shutdown.
// It satisfies tenants.BusAttacher.
func (p *Publisher) Attach(tc tenant.Context, bus *jobs.EventBus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.accepting || p.closing {
		p.logger.Warnw("Publisher not running, tenant bus not attached", tc.LogFields()...)
		return
	}

	events, unsubscribe := bus.Subscribe(p.opts.SubscriberBuffer)
	p.detach = append(p.detach, unsubscribe)
	p.pumps.Add(1)
	go func() {
		defer p.pumps.Done()
		for e := range events {
			le, ok := e.Data.(jobs.LifecycleEvent)
			if !e.IsLifecycle() || !ok {
				continue
			}
			if err := p.enqueue(Notification{Tenant: tc, Event: le}); err != nil {
				p.logger.Debugw("Notification not queued",
					logger.FieldEvent, e.Name,
					logger.FieldJobID, le.JobID,
					logger.FieldError, err,
				)
			}
		}
	}()
	p.logger.Debugw("Tenant bus attached", tc.LogFields()...)
}

func (p *Publisher) enqueue(n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.accepting {
		return ErrStopped
	}
	select {
	case p.queue <- n:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

func (p *Publisher) workerLoop(ctx context.Context, q <-chan Notification) {
	for n := range q {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}
		p.send(ctx, n)
	}
}

func (p *Publisher) send(ctx context.Context, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Errorw("Notification sink panicked", logger.FieldError, errors.SafeString(r))
		}
	}()

	if p.opts.Sink == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()
	if err := p.opts.Sink.Send(callCtx, n); err != nil {
		p.failed.Add(1)
		p.logger.Warnw("Notification send failed",
			logger.FieldEvent, n.Event.Type,
			logger.FieldJobID, n.Event.JobID,
			logger.FieldError, err,
		)
		return
	}
	p.sent.Add(1)
}

// Shutdown detaches every bus, drains queued notifications until ctx is done
// and stops the worker
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.queue == nil {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	detach := p.detach
	p.detach = nil
	p.mu.Unlock()

	// Pumps exit once their subscription channels close
	for _, fn := range detach {
		fn()
	}
	p.pumps.Wait()

	p.mu.Lock()
	p.accepting = false
	close(p.queue)
	p.queue = nil
	cancel := p.runCancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.worker.Wait()
		close(done)
	}()
	defer cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "notification queue not drained")
	}
}

// Stats reports delivery counters
func (p *Publisher) Stats() (sent, dropped, failed uint64) {
	return p.sent.Load(), p.dropped.Load(), p.failed.Load()
}
