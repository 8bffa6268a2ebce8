// Package tenant defines the explicit tenant/org scope that every job,
// event and store operation runs under.
package tenant

import (
	"fmt"
	"strings"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// ErrNoTenantContext is returned when tenant-scoped work is attempted
// without a resolved tenant. There is no default tenant to fall back to.
var ErrNoTenantContext = errors.New("no tenant context")

// Context identifies the isolation scope of a scheduler, event bus and store.
// It is passed explicitly through every call in the request/job path.
type Context struct {
	TenantID string `json:"tenantId"`
	OrgID    string `json:"orgId"`
}

// New builds a Context, trimming surrounding whitespace.
func New(tenantID, orgID string) Context {
	return Context{
		TenantID: strings.TrimSpace(tenantID),
		OrgID:    strings.TrimSpace(orgID),
	}
}

// Validate fails when either identifier is missing.
func (c Context) Validate() error {
	if c.TenantID == "" || c.OrgID == "" {
		err := errors.Wrap(ErrNoTenantContext, "tenant and org are required")
		return errors.WithDetail(err, fmt.Sprintf("Tenant: %q, Org: %q", c.TenantID, c.OrgID))
	}
	// "/" separates the two halves of Key()
	if strings.ContainsAny(c.TenantID+c.OrgID, "/\\") {
		err := errors.Wrap(ErrNoTenantContext, "tenant and org must not contain path separators")
		return errors.WithDetail(err, fmt.Sprintf("Tenant: %q, Org: %q", c.TenantID, c.OrgID))
	}
	return nil
}

// Key is a stable cache key for this tenant/org pair.
func (c Context) Key() string {
	return c.TenantID + "/" + c.OrgID
}

// IsZero reports whether no tenant was resolved.
func (c Context) IsZero() bool {
	return c.TenantID == "" && c.OrgID == ""
}

func (c Context) String() string {
	return c.Key()
}

// LogFields returns zap key/value pairs for this tenant.
func (c Context) LogFields() []interface{} {
	return []interface{}{"tenant_id", c.TenantID, "org_id", c.OrgID}
}
