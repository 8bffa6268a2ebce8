package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance, no user/project config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "tenants", cfg.Database.TenantDir)
	assert.Equal(t, 0, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 8, cfg.Jobs.MaxTriggerDepth)
	assert.Equal(t, 100, cfg.Jobs.SubscriberBuffer)
	assert.Equal(t, "main", cfg.Triggers.DefaultBranch)
	assert.Equal(t, "run-script", cfg.Triggers.RunScriptJob)
	assert.Equal(t, "jolli", cfg.Metrics.Namespace)
	assert.Equal(t, "@daily", cfg.Jobs.PurgeSchedule)
	assert.Equal(t, 720*time.Hour, cfg.Jobs.PurgeAfter)
	assert.Equal(t, 512, cfg.Notify.QueueSize)
	assert.Empty(t, cfg.Notify.URL)
	assert.False(t, cfg.Notify.AllowPrivate)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jolli.toml")
	content := `
[database]
tenant_dir = "/var/lib/jolli/tenants"

[jobs]
max_concurrent = 4
max_trigger_depth = 3
purge_after = "48h"

[triggers]
default_branch = "trunk"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/jolli/tenants", cfg.Database.TenantDir)
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 3, cfg.Jobs.MaxTriggerDepth)
	assert.Equal(t, 48*time.Hour, cfg.Jobs.PurgeAfter)
	assert.Equal(t, "trunk", cfg.Triggers.DefaultBranch)
	// Untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Jobs.SubscriberBuffer)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Jobs:     JobsConfig{MaxTriggerDepth: 8},
			Triggers: TriggersConfig{DefaultBranch: "main", RunScriptJob: "run-script"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "negative concurrency", mutate: func(c *Config) { c.Jobs.MaxConcurrent = -1 }, wantErr: true},
		{name: "zero trigger depth", mutate: func(c *Config) { c.Jobs.MaxTriggerDepth = 0 }, wantErr: true},
		{name: "negative buffer", mutate: func(c *Config) { c.Jobs.SubscriberBuffer = -5 }, wantErr: true},
		{name: "negative history", mutate: func(c *Config) { c.Jobs.HistoryLimit = -1 }, wantErr: true},
		{name: "bad purge schedule", mutate: func(c *Config) { c.Jobs.PurgeSchedule = "every tuesday" }, wantErr: true},
		{name: "descriptor purge schedule", mutate: func(c *Config) { c.Jobs.PurgeSchedule = "@hourly" }},
		{name: "negative purge age", mutate: func(c *Config) { c.Jobs.PurgeAfter = -time.Hour }, wantErr: true},
		{name: "negative notify rate", mutate: func(c *Config) { c.Notify.RatePerSec = -1 }, wantErr: true},
		{name: "empty default branch", mutate: func(c *Config) { c.Triggers.DefaultBranch = "" }, wantErr: true},
		{name: "empty run-script job", mutate: func(c *Config) { c.Triggers.RunScriptJob = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("JOLLI_JOBS_MAX_CONCURRENT", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Jobs.MaxConcurrent)
}

func TestLoad_ProjectFileFoundUpward(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[jobs]\nhistory_limit = 9\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	paths := CascadePaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(root, FileName), paths[len(paths)-1])

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Jobs.HistoryLimit)
	assert.EqualValues(t, 9, Get("jobs.history_limit"))
}
