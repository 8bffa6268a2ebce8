package integrations

import (
	"context"
	"fmt"
	"sort"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
)

// Behavior is the per-type part of integration handling. Optional hooks are
// separate interfaces a behavior may also implement.
type Behavior interface {
	Type() Type
}

// PreCreateHook validates and fills an integration before it is stored
type PreCreateHook interface {
	PreCreate(ctx context.Context, in *Integration) error
}

// AccessChecker computes the status an integration should have right now
type AccessChecker interface {
	CheckAccess(ctx context.Context, in Integration) (Status, error)
}

// JobDefinitionProvider contributes reconciliation jobs to a scheduler
type JobDefinitionProvider interface {
	JobDefinitions() []jobs.JobDefinition
}

// Registry resolves behaviors by integration type
type Registry map[Type]Behavior

// NewRegistry builds a registry from behaviors; a later behavior of the same type wins
func NewRegistry(behaviors ...Behavior) Registry {
	r := make(Registry, len(behaviors))
	for _, b := range behaviors {
		r[b.Type()] = b
	}
	return r
}

// Get returns the behavior for t
func (r Registry) Get(t Type) (Behavior, error) {
	b, ok := r[t]
	if !ok {
		err := errors.NewNotFoundError("no behavior for integration type %s", t)
		return nil, errors.WithDetail(err, fmt.Sprintf("Integration type: %s", t))
	}
	return b, nil
}

// Create runs the type's PreCreate hook, if any, and stores the integration
func (r Registry) Create(ctx context.Context, m Manager, in Integration) (*Integration, error) {
	b, err := r.Get(in.Type)
	if err != nil {
		return nil, err
	}
	if hook, ok := b.(PreCreateHook); ok {
		if err := hook.PreCreate(ctx, &in); err != nil {
			return nil, errors.Wrapf(err, "pre-create hook rejected %s integration", in.Type)
		}
	}
	return m.CreateIntegration(ctx, in)
}

// CheckAccess asks the type's AccessChecker for the current status.
// Types without a checker keep their stored status.
func (r Registry) CheckAccess(ctx context.Context, in Integration) (Status, error) {
	b, err := r.Get(in.Type)
	if err != nil {
		return "", err
	}
	checker, ok := b.(AccessChecker)
	if !ok {
		return in.Status, nil
	}
	return checker.CheckAccess(ctx, in)
}

// JobDefinitions collects the jobs of every provider, ordered by type
func (r Registry) JobDefinitions() []jobs.JobDefinition {
	types := make([]string, 0, len(r))
	for t := range r {
		types = append(types, string(t))
	}
	sort.Strings(types)

	var defs []jobs.JobDefinition
	for _, t := range types {
		if p, ok := r[Type(t)].(JobDefinitionProvider); ok {
			defs = append(defs, p.JobDefinitions()...)
		}
	}
	return defs
}

// Register adds every provided job definition to sched
func (r Registry) Register(sched *jobs.Scheduler) error {
	for _, def := range r.JobDefinitions() {
		if err := sched.RegisterJob(def); err != nil {
			return errors.Wrapf(err, "failed to register %s", def.Name)
		}
	}
	return nil
}
