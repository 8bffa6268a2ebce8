// Package am holds the engine configuration ("I am" settings).
package am

import "time"

// Config represents the automation engine configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Triggers TriggersConfig `mapstructure:"triggers"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// DatabaseConfig configures SQLite persistence for job executions
type DatabaseConfig struct {
	TenantDir string `mapstructure:"tenant_dir"` // One database file per tenant/org lives here
}

// JobsConfig configures the job scheduler
type JobsConfig struct {
	MaxConcurrent    int `mapstructure:"max_concurrent"`    // 0 = unbounded
	MaxTriggerDepth  int `mapstructure:"max_trigger_depth"` // Longest event-trigger chain before loop prevention kicks in
	SubscriberBuffer int `mapstructure:"subscriber_buffer"` // Channel buffer for event bus subscribers
	HistoryLimit     int `mapstructure:"history_limit"`     // Default page size for execution history

	PurgeSchedule string        `mapstructure:"purge_schedule"` // Cron spec for history purges, "" disables
	PurgeAfter    time.Duration `mapstructure:"purge_after"`    // Finished executions older than this are purged
}

// TriggersConfig configures JRN trigger resolution
type TriggersConfig struct {
	DocsDir       string `mapstructure:"docs_dir"`       // Automation documents read by the CLI
	DefaultBranch string `mapstructure:"default_branch"` // Branch used when neither integration nor event declares one
	RunScriptJob  string `mapstructure:"run_script_job"` // Job queued for executable documents
}

// LoggingConfig configures zap output
type LoggingConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// MetricsConfig configures prometheus collectors
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// NotifyConfig configures lifecycle push fan-out
type NotifyConfig struct {
	QueueSize    int     `mapstructure:"queue_size"`
	RatePerSec   float64 `mapstructure:"rate_per_sec"`  // 0 = unlimited
	URL          string  `mapstructure:"url"`           // Receiver for HTTP pushes, "" logs instead
	AllowPrivate bool    `mapstructure:"allow_private"` // Permit loopback and private receiver addresses
}

// Default directory permissions for ~/.jolli
const DefaultDirPermissions = 0o755
