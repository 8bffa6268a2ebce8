package integrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
)

type plainBehavior struct{ t Type }

func (p plainBehavior) Type() Type { return p.t }

type providingBehavior struct {
	plainBehavior
	names []string
}

func (p providingBehavior) JobDefinitions() []jobs.JobDefinition {
	var defs []jobs.JobDefinition
	for _, n := range p.names {
		defs = append(defs, jobs.Define(n, func(context.Context, *jobs.JobContext, struct{}) error { return nil }).Build())
	}
	return defs
}

func TestRegistry_GetUnknownType(t *testing.T) {
	_, err := NewRegistry().Get("gitlab")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRegistry_CreateWithoutHookStoresAsIs(t *testing.T) {
	r := NewRegistry(plainBehavior{t: "static"})
	m := NewMemoryManager()

	in, err := r.Create(context.Background(), m, Integration{Type: "static", Name: "site", Status: StatusActive})
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, StatusActive, in.Status)

	status, err := r.CheckAccess(context.Background(), *in)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status, "types without a checker keep their status")
}

func TestRegistry_JobDefinitionsOrderedByType(t *testing.T) {
	r := NewRegistry(
		providingBehavior{plainBehavior{"zeta"}, []string{"z:one"}},
		plainBehavior{"plain"},
		providingBehavior{plainBehavior{"alpha"}, []string{"a:one", "a:two"}},
	)

	var names []string
	for _, d := range r.JobDefinitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a:one", "a:two", "z:one"}, names)
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	s := jobs.NewScheduler(jobs.NewMemoryStore(), jobs.NewEventBus(nil), jobs.Options{})
	r := NewRegistry(providingBehavior{plainBehavior{"dup"}, []string{"x:job", "x:job"}})

	err := r.Register(s)
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestMemoryManager_UpdateMissing(t *testing.T) {
	status := StatusActive
	_, err := NewMemoryManager().UpdateIntegration(context.Background(), "nope", Update{Status: &status})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestMemoryInstallationDao_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	dao := NewMemoryInstallationDao()
	require.NoError(t, dao.UpsertInstallation(ctx, Installation{ID: 7, Account: "Acme", Repos: []string{"acme/a"}}))

	inst, err := dao.FindInstallationByAccount(ctx, "acme")
	require.NoError(t, err)
	inst.Repos[0] = "mutated"

	again, err := dao.GetInstallation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/a"}, again.Repos)

	require.NoError(t, dao.DeleteInstallation(ctx, 7))
	_, err = dao.GetInstallation(ctx, 7)
	assert.True(t, errors.IsNotFoundError(err))
}
