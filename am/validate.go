package am

import (
	"github.com/robfig/cron/v3"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Jobs.MaxConcurrent < 0 {
		return errors.Newf("jobs.max_concurrent must be >= 0, got %d", c.Jobs.MaxConcurrent)
	}

	// Depth 0 would prevent every event-triggered job from running
	if c.Jobs.MaxTriggerDepth < 1 {
		return errors.Newf("jobs.max_trigger_depth must be >= 1, got %d", c.Jobs.MaxTriggerDepth)
	}

	if c.Jobs.SubscriberBuffer < 0 {
		return errors.Newf("jobs.subscriber_buffer must be >= 0, got %d", c.Jobs.SubscriberBuffer)
	}

	if c.Jobs.HistoryLimit < 0 {
		return errors.Newf("jobs.history_limit must be >= 0, got %d", c.Jobs.HistoryLimit)
	}

	if c.Jobs.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.Jobs.PurgeSchedule); err != nil {
			return errors.Wrapf(err, "jobs.purge_schedule %q is not a valid cron spec", c.Jobs.PurgeSchedule)
		}
	}

	if c.Jobs.PurgeAfter < 0 {
		return errors.Newf("jobs.purge_after must be >= 0, got %s", c.Jobs.PurgeAfter)
	}

	if c.Notify.QueueSize < 0 {
		return errors.Newf("notify.queue_size must be >= 0, got %d", c.Notify.QueueSize)
	}

	if c.Notify.RatePerSec < 0 {
		return errors.Newf("notify.rate_per_sec must be >= 0, got %g", c.Notify.RatePerSec)
	}

	if c.Triggers.DefaultBranch == "" {
		return errors.New("triggers.default_branch cannot be empty")
	}

	if c.Triggers.RunScriptJob == "" {
		return errors.New("triggers.run_script_job cannot be empty")
	}

	return nil
}
