package integrations

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jrn"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/trigger"
)

// GitHub reconciliation jobs
const (
	JobGitHubInstallationCreated     = "integrations:github-installation-created"
	JobGitHubInstallationDeleted     = "integrations:github-installation-deleted"
	JobGitHubInstallationSuspended   = "integrations:github-installation-suspended"
	JobGitHubInstallationUnsuspended = "integrations:github-installation-unsuspended"
	JobGitHubRepositoriesChanged     = "integrations:github-repositories-changed"
)

// EventIntegrationUpdated is published whenever reconciliation changes an integration
const EventIntegrationUpdated = "integration:updated"

// UpdatedPayload is the data of EventIntegrationUpdated
type UpdatedPayload struct {
	IntegrationID  string `json:"integrationId"`
	Type           Type   `json:"type"`
	Repo           string `json:"repo"`
	Status         Status `json:"status"`
	PreviousStatus Status `json:"previousStatus"`
}

// GitHub is the behavior of GitHub App integrations for one tenant
type GitHub struct {
	integrations  Manager
	installations InstallationDao
	logger        *zap.SugaredLogger
}

// NewGitHub creates the GitHub behavior over a tenant's stores
func NewGitHub(m Manager, dao InstallationDao, log *zap.SugaredLogger) *GitHub {
	return &GitHub{
		integrations:  m,
		installations: dao,
		logger:        logger.OrDefault(log).Named("github"),
	}
}

// Type implements Behavior
func (g *GitHub) Type() Type { return TypeGitHub }

// PreCreate implements PreCreateHook. The repo must be "org/repo" and the
// initial status reflects the tracked installation.
func (g *GitHub) PreCreate(ctx context.Context, in *Integration) error {
	org, repo := jrn.SplitFullName(in.Metadata.Repo)
	if org == "" || repo == "" {
		return errors.NewInvalidRequestError("github integration repo must be org/repo, got %q", in.Metadata.Repo)
	}
	if in.Name == "" {
		in.Name = in.Metadata.Repo
	}

	inst, err := g.installationFor(ctx, in.Metadata)
	if err != nil {
		return err
	}
	if inst != nil {
		in.Metadata.InstallationID = inst.ID
	}
	in.Status = statusFor(inst, in.Metadata.Repo)
	return nil
}

// CheckAccess implements AccessChecker
func (g *GitHub) CheckAccess(ctx context.Context, in Integration) (Status, error) {
	inst, err := g.installationFor(ctx, in.Metadata)
	if err != nil {
		return StatusError, err
	}
	return statusFor(inst, in.Metadata.Repo), nil
}

// installationFor returns the installation serving md, or nil when none is tracked
func (g *GitHub) installationFor(ctx context.Context, md Metadata) (*Installation, error) {
	var (
		inst *Installation
		err  error
	)
	if md.InstallationID != 0 {
		inst, err = g.installations.GetInstallation(ctx, md.InstallationID)
	} else {
		inst, err = g.installations.FindInstallationByAccount(ctx, md.Owner())
	}
	if errors.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up installation for %s", md.Repo)
	}
	return inst, nil
}

func statusFor(inst *Installation, repo string) Status {
	switch {
	case inst == nil:
		return StatusPendingInstallation
	case inst.Suspended, !inst.HasRepo(repo):
		return StatusNeedsRepoAccess
	default:
		return StatusActive
	}
}

// JobDefinitions implements JobDefinitionProvider
func (g *GitHub) JobDefinitions() []jobs.JobDefinition {
	return []jobs.JobDefinition{
		g.define(JobGitHubInstallationCreated, "Track new installation", g.installationCreated, trigger.EventInstallationCreated),
		g.define(JobGitHubInstallationDeleted, "Forget deleted installation", g.installationDeleted, trigger.EventInstallationDeleted),
		g.define(JobGitHubInstallationSuspended, "Suspend installation", g.suspended(true), trigger.EventInstallationSuspend),
		g.define(JobGitHubInstallationUnsuspended, "Resume installation", g.suspended(false), trigger.EventInstallationUnsuspend),
		g.define(JobGitHubRepositoriesChanged, "Sync installation repositories", g.repositoriesChanged,
			trigger.EventInstallationReposAdded, trigger.EventInstallationReposRemoved),
	}
}

type installationHandler func(ctx context.Context, jc *jobs.JobContext, p trigger.InstallationPayload) error

func (g *GitHub) define(name, title string, h installationHandler, events ...string) jobs.JobDefinition {
	return jobs.Define[trigger.InstallationPayload](name, h).
		Category("integrations").
		Title(title).
		Description("Reconciles GitHub integration status with installation events").
		TriggerOn(events...).
		ExcludeFromStats().
		Build()
}

func (g *GitHub) installationCreated(ctx context.Context, jc *jobs.JobContext, p trigger.InstallationPayload) error {
	inst := Installation{
		ID:      p.Installation.ID,
		Account: p.Installation.Account.Login,
		Repos:   fullNames(p.Repositories),
	}
	if err := g.installations.UpsertInstallation(ctx, inst); err != nil {
		return errors.Wrapf(err, "failed to store installation %d", inst.ID)
	}
	return g.reconcile(ctx, jc, inst.Account, inst.ID, &inst)
}

func (g *GitHub) installationDeleted(ctx context.Context, jc *jobs.JobContext, p trigger.InstallationPayload) error {
	if err := g.installations.DeleteInstallation(ctx, p.Installation.ID); err != nil {
		return errors.Wrapf(err, "failed to delete installation %d", p.Installation.ID)
	}
	return g.reconcile(ctx, jc, p.Installation.Account.Login, p.Installation.ID, nil)
}

func (g *GitHub) suspended(suspended bool) installationHandler {
	return func(ctx context.Context, jc *jobs.JobContext, p trigger.InstallationPayload) error {
		inst, err := g.tracked(ctx, p)
		if err != nil {
			return err
		}
		inst.Suspended = suspended
		if err := g.installations.UpsertInstallation(ctx, *inst); err != nil {
			return errors.Wrapf(err, "failed to store installation %d", inst.ID)
		}
		return g.reconcile(ctx, jc, inst.Account, inst.ID, inst)
	}
}

func (g *GitHub) repositoriesChanged(ctx context.Context, jc *jobs.JobContext, p trigger.InstallationPayload) error {
	inst, err := g.tracked(ctx, p)
	if err != nil {
		return err
	}

	removed := fullNames(p.RepositoriesRemoved)
	repos := inst.Repos[:0]
	for _, r := range inst.Repos {
		if !containsFold(removed, r) {
			repos = append(repos, r)
		}
	}
	for _, r := range fullNames(p.RepositoriesAdded) {
		if !containsFold(repos, r) {
			repos = append(repos, r)
		}
	}
	inst.Repos = repos

	if err := g.installations.UpsertInstallation(ctx, *inst); err != nil {
		return errors.Wrapf(err, "failed to store installation %d", inst.ID)
	}
	return g.reconcile(ctx, jc, inst.Account, inst.ID, inst)
}

// tracked returns the stored installation for p, or one built from p when
// the created event was never seen
func (g *GitHub) tracked(ctx context.Context, p trigger.InstallationPayload) (*Installation, error) {
	inst, err := g.installations.GetInstallation(ctx, p.Installation.ID)
	if err == nil {
		return inst, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, errors.Wrapf(err, "failed to load installation %d", p.Installation.ID)
	}
	return &Installation{
		ID:      p.Installation.ID,
		Account: p.Installation.Account.Login,
		Repos:   fullNames(p.Repositories),
	}, nil
}

// reconcile recomputes every GitHub integration served by the installation
// (inst nil when it is gone) and publishes the ones that changed
func (g *GitHub) reconcile(ctx context.Context, jc *jobs.JobContext, account string, installationID int64, inst *Installation) error {
	all, err := g.integrations.ListIntegrations(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list integrations")
	}

	checked, updated := 0, 0
	for _, in := range all {
		if in.Type != TypeGitHub {
			continue
		}
		served := in.Metadata.InstallationID == installationID ||
			(in.Metadata.InstallationID == 0 && strings.EqualFold(in.Metadata.Owner(), account))
		if !served {
			continue
		}
		checked++

		md := in.Metadata
		md.InstallationID = 0
		if inst != nil {
			md.InstallationID = inst.ID
		}
		status := statusFor(inst, md.Repo)
		if status == in.Status && md == in.Metadata {
			continue
		}

		if _, err := g.integrations.UpdateIntegration(ctx, in.ID, Update{Status: &status, Metadata: &md}); err != nil {
			// One bad record must not block the rest of the installation
			jc.Log(ctx, "integration-update-failed", map[string]any{
				"integrationId": in.ID,
				"error":         errors.SafeString(err),
			}, jobs.LogLevelError)
			continue
		}
		updated++

		g.logger.Infow("Integration status reconciled",
			"integration_id", in.ID,
			"repo", md.Repo,
			logger.FieldStatus, status,
			"previous_status", in.Status,
		)
		jc.EmitEvent(ctx, EventIntegrationUpdated, UpdatedPayload{
			IntegrationID:  in.ID,
			Type:           in.Type,
			Repo:           md.Repo,
			Status:         status,
			PreviousStatus: in.Status,
		})
	}

	return jc.UpdateStats(ctx, map[string]any{"checked": checked, "updated": updated})
}

func fullNames(refs []trigger.RepoRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.FullName != "" {
			out = append(out, r.FullName)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
