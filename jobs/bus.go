package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
)

// DefaultSubscriberBuffer is used when Subscribe is called with a non-positive buffer
const DefaultSubscriberBuffer = 100

// Listener is called synchronously, in registration order, for every published event
type Listener func(ctx context.Context, e Event)

// EventBus is a per-tenant publish/subscribe channel.
//
// Contract:
//   - Listeners registered with On run before Publish returns.
//   - Subscribers receive events FIFO on buffered channels.
//   - A full subscriber drops the event; Publish never blocks on it.
type EventBus struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	subs      []subscriberEntry
	seq       atomic.Uint64
	dropped   atomic.Uint64
	logger    *zap.SugaredLogger
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type subscriberEntry struct {
	id uint64
	ch chan Event
}

// NewEventBus creates an empty bus
func NewEventBus(log *zap.SugaredLogger) *EventBus {
	return &EventBus{logger: logger.OrDefault(log).Named("bus")}
}

// On registers a synchronous listener and returns a function that removes it
func (b *EventBus) On(fn Listener) (remove func()) {
	id := b.seq.Add(1)

	b.mu.Lock()
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, l := range b.listeners {
				if l.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribe returns a buffered channel receiving every event published after the call
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs = append(b.subs, subscriberEntry{id: id, ch: ch})
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			// Closing is safe because deliver recovers from send panics.
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish delivers e to every listener, then to every subscriber
func (b *EventBus) Publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	// Snapshot so listeners may publish or register without deadlocking
	b.mu.RLock()
	listeners := make([]listenerEntry, len(b.listeners))
	copy(listeners, b.listeners)
	subs := make([]subscriberEntry, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, l := range listeners {
		b.callListener(ctx, l.fn, e)
	}
	for _, s := range subs {
		b.deliver(s.ch, e)
	}
}

// Emit publishes a bare named event
func (b *EventBus) Emit(ctx context.Context, name string, data any) {
	b.Publish(ctx, Event{Name: name, Data: data})
}

// Dropped returns how many subscriber deliveries were dropped on full buffers
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *EventBus) callListener(ctx context.Context, fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Event listener panicked",
				logger.FieldEvent, e.Name,
				logger.FieldError, errors.SafeString(r),
			)
		}
	}()
	fn(ctx, e)
}

func (b *EventBus) deliver(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warnw("Subscriber buffer full, dropping event", logger.FieldEvent, e.Name)
	}
}
