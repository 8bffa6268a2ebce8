package integrations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// MemoryManager is an in-process Manager for one tenant
type MemoryManager struct {
	mu    sync.RWMutex
	items map[string]Integration
}

// NewMemoryManager creates an empty manager
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{items: make(map[string]Integration)}
}

// ListIntegrations implements Manager, oldest first
func (m *MemoryManager) ListIntegrations(_ context.Context) ([]Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Integration, 0, len(m.items))
	for _, in := range m.items {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetIntegration implements Manager
func (m *MemoryManager) GetIntegration(_ context.Context, id string) (*Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, ok := m.items[id]
	if !ok {
		return nil, integrationNotFound(id)
	}
	return &in, nil
}

// CreateIntegration implements Manager, assigning an ID when none is set
func (m *MemoryManager) CreateIntegration(_ context.Context, in Integration) (*Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if _, exists := m.items[in.ID]; exists {
		err := errors.NewConflictError("integration already exists: %s", in.ID)
		return nil, errors.WithDetail(err, fmt.Sprintf("Integration ID: %s", in.ID))
	}
	now := time.Now().UTC()
	in.CreatedAt, in.UpdatedAt = now, now
	m.items[in.ID] = in
	return &in, nil
}

// UpdateIntegration implements Manager
func (m *MemoryManager) UpdateIntegration(_ context.Context, id string, u Update) (*Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.items[id]
	if !ok {
		return nil, integrationNotFound(id)
	}
	if u.Status != nil {
		in.Status = *u.Status
	}
	if u.Metadata != nil {
		in.Metadata = *u.Metadata
	}
	in.UpdatedAt = time.Now().UTC()
	m.items[id] = in
	return &in, nil
}

func integrationNotFound(id string) error {
	err := errors.NewNotFoundError("integration not found: %s", id)
	return errors.WithDetail(err, fmt.Sprintf("Integration ID: %s", id))
}

// MemoryInstallationDao is an in-process InstallationDao for one tenant
type MemoryInstallationDao struct {
	mu    sync.RWMutex
	items map[int64]Installation
}

// NewMemoryInstallationDao creates an empty dao
func NewMemoryInstallationDao() *MemoryInstallationDao {
	return &MemoryInstallationDao{items: make(map[int64]Installation)}
}

// GetInstallation implements InstallationDao
func (d *MemoryInstallationDao) GetInstallation(_ context.Context, id int64) (*Installation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	inst, ok := d.items[id]
	if !ok {
		err := errors.NewNotFoundError("installation not found: %d", id)
		return nil, errors.WithDetail(err, fmt.Sprintf("Installation ID: %d", id))
	}
	return cloneInstallation(inst), nil
}

// FindInstallationByAccount implements InstallationDao
func (d *MemoryInstallationDao) FindInstallationByAccount(_ context.Context, account string) (*Installation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, inst := range d.items {
		if strings.EqualFold(inst.Account, account) {
			return cloneInstallation(inst), nil
		}
	}
	err := errors.NewNotFoundError("no installation for account %s", account)
	return nil, errors.WithDetail(err, fmt.Sprintf("Account: %s", account))
}

// UpsertInstallation implements InstallationDao
func (d *MemoryInstallationDao) UpsertInstallation(_ context.Context, inst Installation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	inst.UpdatedAt = time.Now().UTC()
	d.items[inst.ID] = *cloneInstallation(inst)
	return nil
}

// DeleteInstallation implements InstallationDao; deleting an unknown id is a no-op
func (d *MemoryInstallationDao) DeleteInstallation(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, id)
	return nil
}

func cloneInstallation(inst Installation) *Installation {
	inst.Repos = append([]string(nil), inst.Repos...)
	return &inst
}
