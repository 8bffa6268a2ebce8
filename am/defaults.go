package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.tenant_dir", "tenants")

	// Scheduler defaults
	v.SetDefault("jobs.max_concurrent", 0)    // Unbounded, handlers interleave freely
	v.SetDefault("jobs.max_trigger_depth", 8) // event -> job -> event chains longer than this are cut
	v.SetDefault("jobs.subscriber_buffer", 100)
	v.SetDefault("jobs.history_limit", 50)
	v.SetDefault("jobs.purge_schedule", "@daily")
	v.SetDefault("jobs.purge_after", "720h")

	// Trigger defaults
	v.SetDefault("triggers.docs_dir", "docs")
	v.SetDefault("triggers.default_branch", "main")
	v.SetDefault("triggers.run_script_job", "run-script")

	// Logging defaults
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.namespace", "jolli")

	// Notification defaults
	v.SetDefault("notify.queue_size", 512)
	v.SetDefault("notify.rate_per_sec", 0)
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.allow_private", false)
}
