package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// HandlerFunc runs one execution. params has already passed the definition's schema.
type HandlerFunc func(ctx context.Context, jc *JobContext, params json.RawMessage) error

// TriggerPredicate filters auto-triggering beyond the event name match
type TriggerPredicate func(eventName string, payload any) bool

// ParamSchema validates queue request params before an execution row exists
type ParamSchema interface {
	Validate(params json.RawMessage) error
}

// Validator is implemented by typed params that carry their own rules
type Validator interface {
	Validate() error
}

// JobDefinition describes a registered job type.
// Definitions are immutable once registered.
type JobDefinition struct {
	Name        string // Globally unique per scheduler, conventionally "category:action"
	Category    string
	Title       string
	Description string
	Schema      ParamSchema // nil accepts any params
	Handler     HandlerFunc

	TriggerEvents []string
	ShouldTrigger TriggerPredicate // nil means always trigger on a name match

	ShowInDashboard         bool
	KeepCardAfterCompletion bool
	ExcludeFromStats        bool
}

// Validate checks the definition is registrable
func (d *JobDefinition) Validate() error {
	if d.Name == "" {
		return errors.NewInvalidRequestError("job definition missing name")
	}
	if d.Handler == nil {
		err := errors.NewInvalidRequestError("job definition %s missing handler", d.Name)
		return errors.WithDetail(err, fmt.Sprintf("Job name: %s", d.Name))
	}
	return nil
}

// TriggeredBy reports whether an event should auto-queue this definition
func (d *JobDefinition) TriggeredBy(eventName string, payload any) bool {
	matched := false
	for _, name := range d.TriggerEvents {
		if name == eventName {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if d.ShouldTrigger == nil {
		return true
	}
	return d.ShouldTrigger(eventName, payload)
}

// Info returns the dashboard metadata of the definition
func (d *JobDefinition) Info() DefinitionInfo {
	events := make([]string, len(d.TriggerEvents))
	copy(events, d.TriggerEvents)
	return DefinitionInfo{
		Name:                    d.Name,
		Category:                d.Category,
		Title:                   d.Title,
		Description:             d.Description,
		TriggerEvents:           events,
		ShowInDashboard:         d.ShowInDashboard,
		KeepCardAfterCompletion: d.KeepCardAfterCompletion,
		ExcludeFromStats:        d.ExcludeFromStats,
	}
}

// DefinitionInfo is the handler-less view of a JobDefinition returned by ListJobs
type DefinitionInfo struct {
	Name                    string   `json:"name"`
	Category                string   `json:"category"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	TriggerEvents           []string `json:"triggerEvents"`
	ShowInDashboard         bool     `json:"showInDashboard"`
	KeepCardAfterCompletion bool     `json:"keepCardAfterCompletion"`
	ExcludeFromStats        bool     `json:"excludeFromStats"`
}

// TypedSchema validates params by decoding them into P.
// Strict rejects fields P does not declare.
type TypedSchema[P any] struct {
	Strict bool
}

// Validate implements ParamSchema
func (ts TypedSchema[P]) Validate(params json.RawMessage) error {
	_, err := decodeParams[P](params, ts.Strict)
	return err
}

func decodeParams[P any](params json.RawMessage, strict bool) (P, error) {
	var p P
	raw := bytes.TrimSpace(params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&p); err != nil {
		err = errors.Wrap(errors.ErrInvalidRequest, err.Error())
		return p, errors.WithHint(err, "params must match the job's parameter struct")
	}
	if v, ok := any(&p).(Validator); ok {
		if err := v.Validate(); err != nil {
			return p, errors.Wrap(errors.ErrInvalidRequest, err.Error())
		}
	}
	return p, nil
}

// Builder assembles a JobDefinition with typed params
type Builder[P any] struct {
	def     JobDefinition
	strict  bool
	handler func(ctx context.Context, jc *JobContext, params P) error
}

// Define starts a definition whose handler receives decoded params of type P
func Define[P any](name string, handler func(ctx context.Context, jc *JobContext, params P) error) *Builder[P] {
	return &Builder[P]{
		def:     JobDefinition{Name: name, Title: name},
		handler: handler,
	}
}

func (b *Builder[P]) Category(c string) *Builder[P] {
	b.def.Category = c
	return b
}

func (b *Builder[P]) Title(t string) *Builder[P] {
	b.def.Title = t
	return b
}

func (b *Builder[P]) Description(d string) *Builder[P] {
	b.def.Description = d
	return b
}

// TriggerOn adds bus event names that auto-queue the job
func (b *Builder[P]) TriggerOn(events ...string) *Builder[P] {
	b.def.TriggerEvents = append(b.def.TriggerEvents, events...)
	return b
}

// StrictParams rejects params carrying fields P does not declare
func (b *Builder[P]) StrictParams() *Builder[P] {
	b.strict = true
	return b
}

func (b *Builder[P]) ShouldTrigger(fn TriggerPredicate) *Builder[P] {
	b.def.ShouldTrigger = fn
	return b
}

func (b *Builder[P]) ShowInDashboard() *Builder[P] {
	b.def.ShowInDashboard = true
	return b
}

func (b *Builder[P]) KeepCardAfterCompletion() *Builder[P] {
	b.def.KeepCardAfterCompletion = true
	return b
}

func (b *Builder[P]) ExcludeFromStats() *Builder[P] {
	b.def.ExcludeFromStats = true
	return b
}

// Build returns the finished definition
func (b *Builder[P]) Build() JobDefinition {
	def := b.def
	def.TriggerEvents = append([]string(nil), b.def.TriggerEvents...)
	def.Schema = TypedSchema[P]{Strict: b.strict}
	if b.handler != nil {
		handler, strict := b.handler, b.strict
		def.Handler = func(ctx context.Context, jc *JobContext, raw json.RawMessage) error {
			params, err := decodeParams[P](raw, strict)
			if err != nil {
				return err
			}
			return handler(ctx, jc, params)
		}
	}
	return def
}
