// Package integrations tracks the external integrations of a tenant and the
// per-type behavior that reconciles them against installation events.
package integrations

import (
	"context"
	"strings"
	"time"
)

// Type identifies an integration kind
type Type string

// TypeGitHub is the GitHub App integration
const TypeGitHub Type = "github"

// Status is the health of an integration
type Status string

// Integration statuses
const (
	StatusActive              Status = "active"
	StatusNeedsRepoAccess     Status = "needs_repo_access"
	StatusPendingInstallation Status = "pending_installation"
	StatusError               Status = "error"
)

// Metadata is the type-specific part of an integration
type Metadata struct {
	Repo           string `json:"repo"`             // "org/repo"
	Branch         string `json:"branch,omitempty"` // Branch trigger matching resolves against
	InstallationID int64  `json:"installationId,omitempty"`
}

// Owner returns the org half of Repo
func (m Metadata) Owner() string {
	owner, _, _ := strings.Cut(m.Repo, "/")
	return owner
}

// Integration is one configured connection to an external system
type Integration struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Update patches an integration; nil fields are left unchanged
type Update struct {
	Status   *Status
	Metadata *Metadata
}

// Manager persists the integrations of one tenant
type Manager interface {
	ListIntegrations(ctx context.Context) ([]Integration, error)
	GetIntegration(ctx context.Context, id string) (*Integration, error)
	CreateIntegration(ctx context.Context, in Integration) (*Integration, error)
	UpdateIntegration(ctx context.Context, id string, u Update) (*Integration, error)
}

// Installation is a tracked GitHub App installation
type Installation struct {
	ID        int64     `json:"id"`
	Account   string    `json:"account"`
	Repos     []string  `json:"repos"` // Full names, "org/repo"
	Suspended bool      `json:"suspended"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRepo reports whether the installation grants access to fullName
func (i *Installation) HasRepo(fullName string) bool {
	for _, r := range i.Repos {
		if strings.EqualFold(r, fullName) {
			return true
		}
	}
	return false
}

// InstallationDao persists installations of one tenant
type InstallationDao interface {
	GetInstallation(ctx context.Context, id int64) (*Installation, error)
	FindInstallationByAccount(ctx context.Context, account string) (*Installation, error)
	UpsertInstallation(ctx context.Context, inst Installation) error
	DeleteInstallation(ctx context.Context, id int64) error
}
