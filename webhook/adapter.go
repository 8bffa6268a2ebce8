// Package webhook normalizes GitHub webhook deliveries into tenant bus events.
// Signature verification and HTTP routing happen before Deliver is called.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs/tenants"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// EventPrefix namespaces every bus event built from a GitHub delivery
const EventPrefix = "github:"

// DefaultRecentDeliveries bounds the duplicate-delivery memory
const DefaultRecentDeliveries = 4096

// SchedulerResolver resolves the tenant a delivery belongs to.
// *tenants.Manager satisfies it.
type SchedulerResolver interface {
	GetSchedulerForContext(ctx context.Context, tc tenant.Context) (*tenants.TenantScheduler, error)
}

// Delivery is one received webhook
type Delivery struct {
	ID    string // X-GitHub-Delivery
	Event string // X-GitHub-Event
	Body  []byte
}

// Result describes what Deliver published
type Result struct {
	Event     string `json:"event"`
	Duplicate bool   `json:"duplicate"`
}

// Options configures an Adapter
type Options struct {
	RecentDeliveries int
	Logger           *zap.SugaredLogger
}

// Adapter publishes each delivery once on its tenant's bus
type Adapter struct {
	resolver SchedulerResolver
	recent   *recentSet
	logger   *zap.SugaredLogger
}

// NewAdapter creates an adapter over resolver
func NewAdapter(resolver SchedulerResolver, opts Options) *Adapter {
	if opts.RecentDeliveries <= 0 {
		opts.RecentDeliveries = DefaultRecentDeliveries
	}
	return &Adapter{
		resolver: resolver,
		recent:   newRecentSet(opts.RecentDeliveries),
		logger:   logger.OrDefault(opts.Logger).Named("webhook"),
	}
}

// EventName builds the bus event name for a GitHub event and payload action
func EventName(event, action string) string {
	name := EventPrefix + strings.ToLower(strings.TrimSpace(event))
	if action = strings.TrimSpace(action); action != "" {
		name += ":" + strings.ToLower(action)
	}
	return name
}

// Deliver publishes d on the bus of tc. A tenant that cannot be resolved is a
// hard error and nothing is published. A delivery ID seen before is skipped.
func (a *Adapter) Deliver(ctx context.Context, tc tenant.Context, d Delivery) (*Result, error) {
	if d.ID == "" || d.Event == "" {
		return nil, errors.NewInvalidRequestError("delivery id and event are required")
	}

	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		err = errors.Wrap(errors.ErrInvalidRequest, "webhook body is not a JSON object")
		return nil, errors.WithDetail(err, fmt.Sprintf("Delivery: %s", d.ID))
	}
	name := EventName(d.Event, envelope.Action)
	log := logger.ChildLogger(a.logger, logger.FieldDelivery, d.ID, logger.FieldEvent, name)

	ts, err := a.resolver.GetSchedulerForContext(ctx, tc)
	if err != nil {
		log.Errorw("Rejecting webhook for unresolved tenant", logger.FieldError, err)
		err = errors.Wrap(err, "failed to resolve tenant for webhook")
		return nil, errors.WithDetail(err, fmt.Sprintf("Delivery: %s", d.ID))
	}

	key := tc.Key() + "#" + d.ID
	if !a.recent.add(key) {
		log.Infow("Skipping duplicate webhook delivery", tc.LogFields()...)
		return &Result{Event: name, Duplicate: true}, nil
	}

	ts.Bus.Publish(ctx, jobs.Event{Name: name, Data: append(json.RawMessage(nil), d.Body...)})
	log.Infow("Webhook published", tc.LogFields()...)
	return &Result{Event: name}, nil
}
