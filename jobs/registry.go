package jobs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// Registry holds job definitions by name.
// Thread-safe for concurrent registration and lookup.
type Registry struct {
	defs map[string]*JobDefinition
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*JobDefinition)}
}

// Register adds a definition.
// Fails with ErrConflict if the name is already taken.
func (r *Registry) Register(def JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		err := errors.NewConflictError("job already registered: %s", def.Name)
		return errors.WithDetail(err, fmt.Sprintf("Job name: %s", def.Name))
	}
	d := def
	r.defs[def.Name] = &d
	return nil
}

// Get returns the definition for name, or nil
func (r *Registry) Get(name string) *JobDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name]
}

// Has checks if a definition is registered for name
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// List returns all definitions sorted by name
func (r *Registry) List() []*JobDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*JobDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns all registered names, sorted
func (r *Registry) Names() []string {
	defs := r.List()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// excludedFromStats returns the names flagged ExcludeFromStats
func (r *Registry) excludedFromStats() map[string]bool {
	out := make(map[string]bool)
	for _, d := range r.List() {
		if d.ExcludeFromStats {
			out[d.Name] = true
		}
	}
	return out
}
