package jrn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTriggerMatchers_DecodesSingleOrList(t *testing.T) {
	var single struct {
		On TriggerMatchers `yaml:"on"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`
on:
  jrn: "jrn:*:path:/home/*/sources/github/acme/**"
  verb: CREATED
`), &single))
	require.Len(t, single.On, 1)
	assert.Equal(t, VerbCreated, single.On[0].Verb)

	var list struct {
		On TriggerMatchers `yaml:"on"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`
on:
  - jrn: "jrn:*:path:/home/*/sources/github/acme/**"
    verb: CREATED
  - jrn: "jrn:*:path:/home/*/sources/github/globex/**"
    verb: GIT_PUSH
`), &list))
	require.Len(t, list.On, 2)
	assert.Equal(t, VerbGitPush, list.On[1].Verb)

	var bad struct {
		On TriggerMatchers `yaml:"on"`
	}
	assert.Error(t, yaml.Unmarshal([]byte(`on: "just a string"`), &bad))
}

func TestTriggerMatchers_FirstUsesOrSemantics(t *testing.T) {
	ms := TriggerMatchers{
		{JRN: "jrn:*:path:/home/*/sources/github/acme/**", Verb: VerbCreated},
		{JRN: "jrn:*:path:/home/*/sources/github/globex/**", Verb: VerbCreated},
	}

	m, ok := ms.First(Build("globex", "site", "main"), VerbCreated)
	require.True(t, ok)
	assert.Equal(t, ms[1], m)

	m, ok = ms.First(Build("acme", "site", "main"), VerbCreated)
	require.True(t, ok)
	assert.Equal(t, ms[0], m, "first matching matcher is reported")

	_, ok = ms.First(Build("acme", "site", "main"), VerbRemoved)
	assert.False(t, ok, "verb must match")

	_, ok = ms.First(Build("initech", "site", "main"), VerbCreated)
	assert.False(t, ok)
}

func TestParseVerb(t *testing.T) {
	v, err := ParseVerb(" git_push ")
	require.NoError(t, err)
	assert.Equal(t, VerbGitPush, v)

	_, err = ParseVerb("DELETED")
	assert.Error(t, err)
}
