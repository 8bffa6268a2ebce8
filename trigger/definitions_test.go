package trigger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/docs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

// recordingRunner captures script runs
type recordingRunner struct {
	mu   sync.Mutex
	runs []RunScriptParams
}

func (r *recordingRunner) RunScript(ctx context.Context, jc *jobs.JobContext, params RunScriptParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, params)
	return nil
}

func (r *recordingRunner) docJRNs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	for i, p := range r.runs {
		out[i] = p.DocJRN
	}
	return out
}

func newTriggerScheduler(t *testing.T, source docs.Source, branches BranchLookup) (*jobs.Scheduler, *recordingRunner) {
	t.Helper()
	s := jobs.NewScheduler(jobs.NewMemoryStore(), jobs.NewEventBus(nil), jobs.Options{Tenant: tenant.New("acme", "docs")})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	runner := &recordingRunner{}
	require.NoError(t, Register(s, NewResolver(source, Options{Branches: branches}), runner))
	return s, runner
}

func drainScheduler(t *testing.T, s *jobs.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Drain(ctx))
}

func executionsNamed(t *testing.T, s *jobs.Scheduler, name string) []*jobs.JobExecution {
	t.Helper()
	execs, err := s.ListExecutions(context.Background(), jobs.ExecutionFilter{Name: name})
	require.NoError(t, err)
	return execs
}

func TestShouldTriggerPush(t *testing.T) {
	feature := json.RawMessage(`{"ref":"refs/heads/feature-branch","repository":{"default_branch":"main"}}`)
	main := map[string]any{"ref": "refs/heads/main", "repository": map[string]any{"default_branch": "main"}}

	assert.False(t, ShouldTriggerPush(EventPush, feature))
	assert.True(t, ShouldTriggerPush(EventPush, main))
	assert.False(t, ShouldTriggerPush(EventPush, map[string]any{"ref": "refs/tags/main", "repository": map[string]any{"default_branch": "main"}}))
	assert.False(t, ShouldTriggerPush(EventPush, map[string]any{"ref": "refs/heads/main"}), "missing default branch")
	assert.False(t, ShouldTriggerPush(EventPush, "not json"))
}

func TestPushPayload_Branch(t *testing.T) {
	assert.Equal(t, "feature/x", PushPayload{Ref: "refs/heads/feature/x"}.Branch())
	assert.Empty(t, PushPayload{Ref: "refs/tags/v1"}.Branch())
}

func TestDefinitions_Shape(t *testing.T) {
	defs := Definitions(NewResolver(docs.NewStaticSource(), Options{}), nil)
	byName := map[string]jobs.JobDefinition{}
	for _, d := range defs {
		byName[d.Name] = d
	}

	require.Contains(t, byName, JobInstallationCreated)
	assert.ElementsMatch(t, []string{EventInstallationCreated, EventInstallationReposAdded}, byName[JobInstallationCreated].TriggerEvents)
	assert.ElementsMatch(t, []string{EventInstallationReposRemoved, EventInstallationDeleted}, byName[JobRepositoriesRemoved].TriggerEvents)
	assert.Equal(t, []string{EventPush}, byName[JobGitPush].TriggerEvents)

	script := byName[DefaultRunScriptJob]
	assert.True(t, script.ShowInDashboard)
	assert.True(t, script.KeepCardAfterCompletion)
	assert.Empty(t, script.TriggerEvents)
}

func TestInstallation_RepositoriesAddedQueuesScript(t *testing.T) {
	source := docs.NewStaticSource(scriptDoc("develop-sync",
		"  jrn: \"jrn:*:path:/home/*/sources/github/test-org/test-repo/develop\"\n  verb: CREATED\n"))
	s, runner := newTriggerScheduler(t, source, nil)

	s.GetEventEmitter().Emit(context.Background(), EventInstallationReposAdded, map[string]any{
		"action": "added",
		"repositories_added": []map[string]any{
			{"full_name": "test-org/test-repo", "default_branch": "develop"},
		},
	})
	drainScheduler(t, s)

	scans := executionsNamed(t, s, JobInstallationCreated)
	require.Len(t, scans, 1)
	assert.Equal(t, jobs.JobStatusCompleted, scans[0].Status)

	assert.Equal(t, []string{"jrn::path:/home/global/docs/develop-sync"}, runner.docJRNs())

	scripts := executionsNamed(t, s, DefaultRunScriptJob)
	require.Len(t, scripts, 1)
	assert.Equal(t, jobs.JobStatusCompleted, scripts[0].Status)
	assert.JSONEq(t, `{"docJrn":"jrn::path:/home/global/docs/develop-sync","killSandbox":false}`, string(scripts[0].Params))
}

func TestInstallation_EmptyFullNameUsesPrefix(t *testing.T) {
	source := docs.NewStaticSource(scriptDoc("prefix",
		"  jrn: \"jrn::path:/home/global/sources/github\"\n  verb: CREATED\n"))
	s, runner := newTriggerScheduler(t, source, nil)

	s.GetEventEmitter().Emit(context.Background(), EventInstallationReposAdded, map[string]any{
		"repositories_added": []map[string]any{{"full_name": "", "default_branch": "main"}},
	})
	drainScheduler(t, s)

	assert.Equal(t, []string{"jrn::path:/home/global/docs/prefix"}, runner.docJRNs())
}

type branchMap map[string]string

func (b branchMap) RepoBranch(_ context.Context, org, repo string) (string, bool, error) {
	branch, ok := b[org+"/"+repo]
	return branch, ok, nil
}

func TestInstallation_IntegrationBranchWins(t *testing.T) {
	source := docs.NewStaticSource(
		scriptDoc("on-docs", "  jrn: \"jrn:*:path:/home/*/sources/github/acme/widgets/docs\"\n  verb: CREATED\n"),
		scriptDoc("on-main", "  jrn: \"jrn:*:path:/home/*/sources/github/acme/widgets/main\"\n  verb: CREATED\n"),
	)
	s, runner := newTriggerScheduler(t, source, branchMap{"acme/widgets": "docs"})

	s.GetEventEmitter().Emit(context.Background(), EventInstallationCreated, map[string]any{
		"action":       "created",
		"repositories": []map[string]any{{"full_name": "acme/widgets", "default_branch": "main"}},
	})
	drainScheduler(t, s)

	assert.Equal(t, []string{"jrn::path:/home/global/docs/on-docs"}, runner.docJRNs())
}

func TestRepositoriesRemoved_MatchesRemovedVerb(t *testing.T) {
	source := docs.NewStaticSource(
		scriptDoc("cleanup", "  jrn: \"jrn:*:path:/home/*/sources/github/acme/**\"\n  verb: REMOVED\n"),
		scriptDoc("setup", "  jrn: \"jrn:*:path:/home/*/sources/github/acme/**\"\n  verb: CREATED\n"),
	)
	s, runner := newTriggerScheduler(t, source, nil)

	s.GetEventEmitter().Emit(context.Background(), EventInstallationReposRemoved, map[string]any{
		"repositories_removed": []map[string]any{{"full_name": "acme/widgets"}},
	})
	drainScheduler(t, s)

	assert.Equal(t, []string{"jrn::path:/home/global/docs/cleanup"}, runner.docJRNs())
}

func TestGitPush_OnlyDefaultBranch(t *testing.T) {
	source := docs.NewStaticSource(scriptDoc("on-push",
		"  jrn: \"jrn:*:path:/home/*/sources/github/acme/widgets/main\"\n  verb: GIT_PUSH\n"))
	s, runner := newTriggerScheduler(t, source, nil)
	bus := s.GetEventEmitter()
	ctx := context.Background()

	bus.Emit(ctx, EventPush, json.RawMessage(`{"ref":"refs/heads/feature-branch","repository":{"full_name":"acme/widgets","default_branch":"main"}}`))
	drainScheduler(t, s)
	assert.Empty(t, executionsNamed(t, s, JobGitPush), "feature pushes are filtered before queueing")

	bus.Emit(ctx, EventPush, json.RawMessage(`{"ref":"refs/heads/main","repository":{"full_name":"acme/widgets","default_branch":"main"}}`))
	drainScheduler(t, s)

	pushes := executionsNamed(t, s, JobGitPush)
	require.Len(t, pushes, 1)
	assert.Equal(t, jobs.JobStatusCompleted, pushes[0].Status)
	assert.Equal(t, []string{"jrn::path:/home/global/docs/on-push"}, runner.docJRNs())
}

func TestRunScript_RejectsUnknownParams(t *testing.T) {
	s, _ := newTriggerScheduler(t, docs.NewStaticSource(), nil)

	_, err := s.QueueJob(context.Background(), jobs.QueueRequest{
		Name:   DefaultRunScriptJob,
		Params: map[string]any{"docJrn": "jrn::path:/home/global/docs/a", "extra": true},
	})
	require.Error(t, err)

	_, err = s.QueueJob(context.Background(), jobs.QueueRequest{Name: DefaultRunScriptJob, Params: map[string]any{}})
	require.Error(t, err, "docJrn is required")
}
