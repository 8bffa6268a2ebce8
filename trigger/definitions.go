package trigger

import (
	"context"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jrn"
)

// Trigger job names
const (
	JobInstallationCreated = "triggers:installation-created"
	JobRepositoriesRemoved = "triggers:repositories-removed"
	JobGitPush             = "triggers:git-push"
)

// Bus events the trigger jobs listen on
const (
	EventInstallationCreated      = "github:installation:created"
	EventInstallationDeleted      = "github:installation:deleted"
	EventInstallationSuspend      = "github:installation:suspend"
	EventInstallationUnsuspend    = "github:installation:unsuspend"
	EventInstallationReposAdded   = "github:installation_repositories:added"
	EventInstallationReposRemoved = "github:installation_repositories:removed"
	EventPush                     = "github:push"
)

// ScriptRunner executes an automation document in the script sandbox
type ScriptRunner interface {
	RunScript(ctx context.Context, jc *jobs.JobContext, params RunScriptParams) error
}

// LoggingRunner records script requests without executing them
type LoggingRunner struct{}

// RunScript implements ScriptRunner
func (LoggingRunner) RunScript(ctx context.Context, jc *jobs.JobContext, params RunScriptParams) error {
	jc.Log(ctx, "script-run-requested", map[string]any{
		"docJrn":      params.DocJRN,
		"killSandbox": params.KillSandbox,
	}, jobs.LogLevelInfo)
	return jc.SetCompletionInfo(ctx, map[string]any{"docJrn": params.DocJRN})
}

// Definitions returns the trigger jobs and the script job bound to r.
// A nil runner uses LoggingRunner.
func Definitions(r *Resolver, runner ScriptRunner) []jobs.JobDefinition {
	if runner == nil {
		runner = LoggingRunner{}
	}
	return []jobs.JobDefinition{
		installationCreatedJob(r),
		repositoriesRemovedJob(r),
		gitPushJob(r),
		runScriptJob(r.RunScriptJob(), runner),
	}
}

// Register adds every trigger definition to sched
func Register(sched *jobs.Scheduler, r *Resolver, runner ScriptRunner) error {
	for _, def := range Definitions(r, runner) {
		if err := sched.RegisterJob(def); err != nil {
			return errors.Wrapf(err, "failed to register %s", def.Name)
		}
	}
	return nil
}

func installationCreatedJob(r *Resolver) jobs.JobDefinition {
	return jobs.Define(JobInstallationCreated, func(ctx context.Context, jc *jobs.JobContext, p InstallationPayload) error {
		repos := p.RepositoriesAdded
		if len(repos) == 0 {
			repos = p.Repositories
		}
		return r.resolveRepos(ctx, jc, repos, jrn.VerbCreated)
	}).
		Category("triggers").
		Title("Run triggers for new repositories").
		Description("Scans automation documents for CREATED matchers when repositories are installed").
		TriggerOn(EventInstallationCreated, EventInstallationReposAdded).
		ExcludeFromStats().
		Build()
}

func repositoriesRemovedJob(r *Resolver) jobs.JobDefinition {
	return jobs.Define(JobRepositoriesRemoved, func(ctx context.Context, jc *jobs.JobContext, p InstallationPayload) error {
		repos := p.RepositoriesRemoved
		if len(repos) == 0 {
			repos = p.Repositories
		}
		return r.resolveRepos(ctx, jc, repos, jrn.VerbRemoved)
	}).
		Category("triggers").
		Title("Run triggers for removed repositories").
		Description("Scans automation documents for REMOVED matchers when repositories are uninstalled").
		TriggerOn(EventInstallationReposRemoved, EventInstallationDeleted).
		ExcludeFromStats().
		Build()
}

func gitPushJob(r *Resolver) jobs.JobDefinition {
	return jobs.Define(JobGitPush, func(ctx context.Context, jc *jobs.JobContext, p PushPayload) error {
		org, repo := jrn.SplitFullName(p.Repository.FullName)
		if org == "" {
			org = p.Repository.Owner.Login
		}
		if repo == "" {
			repo = p.Repository.Name
		}
		res, err := r.Resolve(ctx, jc, ResolveRequest{Org: org, Repo: repo, Branch: p.Branch(), Verb: jrn.VerbGitPush})
		if err != nil {
			return err
		}
		return jc.UpdateStats(ctx, map[string]any{"scanned": res.Scanned, "matched": len(res.Matches)})
	}).
		Category("triggers").
		Title("Run triggers for pushes").
		Description("Scans automation documents for GIT_PUSH matchers on pushes to the default branch").
		TriggerOn(EventPush).
		ShouldTrigger(ShouldTriggerPush).
		ExcludeFromStats().
		Build()
}

// ShouldTriggerPush admits only pushes to the repository's default branch
func ShouldTriggerPush(_ string, payload any) bool {
	p, err := decodePayload[PushPayload](payload)
	if err != nil {
		return false
	}
	return p.ToDefaultBranch()
}

func runScriptJob(name string, runner ScriptRunner) jobs.JobDefinition {
	return jobs.Define(name, func(ctx context.Context, jc *jobs.JobContext, p RunScriptParams) error {
		return runner.RunScript(ctx, jc, p)
	}).
		Category("scripts").
		Title("Run automation script").
		Description("Executes a jolliscript document in the sandbox").
		ShowInDashboard().
		KeepCardAfterCompletion().
		StrictParams().
		Build()
}

// resolveRepos scans once per repository
func (r *Resolver) resolveRepos(ctx context.Context, jc *jobs.JobContext, repos []RepoRef, verb jrn.Verb) error {
	scanned, matched := 0, 0
	for _, ref := range repos {
		org, repo := jrn.SplitFullName(ref.FullName)
		branch := r.EffectiveBranch(ctx, org, repo, ref.DefaultBranch)

		res, err := r.Resolve(ctx, jc, ResolveRequest{Org: org, Repo: repo, Branch: branch, Verb: verb})
		if err != nil {
			return err
		}
		scanned += res.Scanned
		matched += len(res.Matches)
	}
	return jc.UpdateStats(ctx, map[string]any{
		"repositories": len(repos),
		"scanned":      scanned,
		"matched":      matched,
	})
}
