package tenants

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/am"
	"github.com/Finn-coder2026/jolli-demo-sub011/db"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// StoreFactory opens the job store bound to one tenant/org
type StoreFactory interface {
	Open(ctx context.Context, tc tenant.Context) (jobs.Store, error)
}

// MemoryStoreFactory gives every tenant a fresh in-memory store
type MemoryStoreFactory struct{}

func (MemoryStoreFactory) Open(_ context.Context, _ tenant.Context) (jobs.Store, error) {
	return jobs.NewMemoryStore(), nil
}

// SQLiteStoreFactory keeps one SQLite file per tenant/org under Dir:
// <Dir>/<tenant>/<org>.db
type SQLiteStoreFactory struct {
	Dir    string
	Logger *zap.SugaredLogger
}

// Path returns the database file for tc
func (f SQLiteStoreFactory) Path(tc tenant.Context) string {
	return filepath.Join(f.Dir, tc.TenantID, tc.OrgID+".db")
}

func (f SQLiteStoreFactory) Open(_ context.Context, tc tenant.Context) (jobs.Store, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	path := f.Path(tc)
	if err := os.MkdirAll(filepath.Dir(path), am.DefaultDirPermissions); err != nil {
		err = errors.Wrap(err, "failed to create tenant database directory")
		return nil, errors.WithDetail(err, fmt.Sprintf("Path: %s", filepath.Dir(path)))
	}

	conn, err := db.OpenWithMigrations(path, f.Logger)
	if err != nil {
		err = errors.Wrapf(err, "failed to open job store for tenant %s", tc)
		return nil, errors.WithDetail(err, fmt.Sprintf("Path: %s", path))
	}
	return jobs.NewSQLStore(conn), nil
}
