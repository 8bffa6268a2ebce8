package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs/tenants"
)

// JobsCmd groups job inspection and administration
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and administer job executions",
	Long: `Inspect registered job definitions and administer the execution
history of one tenant/org.

Examples:
  jolli jobs definitions
  jolli jobs history --tenant acme --org docs --status failed
  jolli jobs retry <id> --tenant acme --org docs
  jolli jobs purge --tenant acme --org docs --older-than 168h`,
}

var (
	jobsTenant tenantFlags

	historyStatus  string
	historyName    string
	historyLimit   int
	historyOffset  int
	historyAll     bool
	historyJSON    bool
	purgeOlderThan time.Duration
	purgeStatuses  []string
)

var jobsDefinitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "List registered job definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, engineOptions{Memory: true}, func(ctx context.Context, e *engine) error {
			// Definitions are identical for every tenant
			ts, err := e.scheduler(ctx, "cli", "definitions")
			if err != nil {
				return err
			}
			defs := ts.Scheduler.ListJobs()
			if historyJSON {
				return printJSON(defs)
			}
			return renderDefinitions(defs)
		})
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List executions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			filter := jobs.ExecutionFilter{
				Name:             historyName,
				Status:           jobs.JobStatus(historyStatus),
				Limit:            historyLimit,
				Offset:           historyOffset,
				IncludeDismissed: historyAll,
			}
			if historyStatus != "" && !jobs.IsValidStatus(historyStatus) {
				return errors.NewInvalidRequestError("unknown status %q", historyStatus)
			}
			if !cmd.Flags().Changed("limit") {
				filter.Limit = e.cfg.Jobs.HistoryLimit
			}

			execs, err := ts.Scheduler.ListExecutions(ctx, filter)
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(execs)
			}
			return renderExecutions(execs)
		})
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one execution with its logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			exec, err := ts.Scheduler.GetExecution(ctx, args[0])
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(exec)
			}
			return renderExecution(exec)
		})
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count executions by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			stats, err := ts.Scheduler.ExecutionStats(ctx)
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(stats)
			}
			return renderStats(stats)
		})
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Run a failed or cancelled execution again",
	Long: `Create a new execution from a failed or cancelled one and run it to
completion. The new execution records the original as its source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			res, err := ts.Scheduler.RetryJob(ctx, args[0])
			if err != nil {
				return err
			}
			if err := ts.Scheduler.Drain(ctx); err != nil {
				return err
			}
			exec, err := ts.Scheduler.GetExecution(ctx, res.JobID)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Retried %s as %s", args[0], res.JobID)
			return renderExecution(exec)
		})
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending or active execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			cancelled, err := ts.Scheduler.CancelJob(ctx, args[0])
			if err != nil {
				return err
			}
			if !cancelled {
				pterm.Info.Printfln("%s already finished, nothing to cancel", args[0])
				return nil
			}
			pterm.Success.Printfln("Cancelled %s", args[0])
			return nil
		})
	},
}

// flagCmd builds the pin/unpin/dismiss commands
func flagCmd(use, short, done string, op func(s *jobs.Scheduler, ctx context.Context, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
				if err := op(ts.Scheduler, ctx, args[0]); err != nil {
					return err
				}
				pterm.Success.Printfln("%s %s", done, args[0])
				return nil
			})
		},
	}
}

var jobsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old finished executions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTenant(cmd, func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error {
			olderThan := purgeOlderThan
			if !cmd.Flags().Changed("older-than") {
				olderThan = e.cfg.Jobs.PurgeAfter
			}
			statuses, err := parseTerminalStatuses(purgeStatuses)
			if err != nil {
				return err
			}

			n, err := ts.Scheduler.PurgeExecutions(ctx, time.Now().Add(-olderThan), statuses)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Purged %d executions older than %s", n, olderThan)
			return nil
		})
	},
}

func parseTerminalStatuses(raw []string) ([]jobs.JobStatus, error) {
	if len(raw) == 0 {
		return []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCancelled}, nil
	}
	out := make([]jobs.JobStatus, 0, len(raw))
	for _, r := range raw {
		st := jobs.JobStatus(r)
		if !st.IsTerminal() {
			return nil, errors.NewInvalidRequestError("can only purge finished statuses, got %q", r)
		}
		out = append(out, st)
	}
	return out, nil
}

// withTenant runs fn against the scheduler named by --tenant/--org
func withTenant(cmd *cobra.Command, fn func(ctx context.Context, e *engine, ts *tenants.TenantScheduler) error) error {
	return withEngine(cmd, engineOptions{}, func(ctx context.Context, e *engine) error {
		ts, err := e.scheduler(ctx, jobsTenant.tenant, jobsTenant.org)
		if err != nil {
			return err
		}
		return fn(ctx, e, ts)
	})
}

func init() {
	jobsTenant.bind(JobsCmd)
	JobsCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print JSON instead of tables")

	jobsHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "Only executions in this status")
	jobsHistoryCmd.Flags().StringVar(&historyName, "name", "", "Only executions of this job")
	jobsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "Page size (default: jobs.history_limit)")
	jobsHistoryCmd.Flags().IntVar(&historyOffset, "offset", 0, "Rows to skip")
	jobsHistoryCmd.Flags().BoolVar(&historyAll, "all", false, "Include dismissed executions")

	jobsPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "Age cutoff (default: jobs.purge_after)")
	jobsPurgeCmd.Flags().StringSliceVar(&purgeStatuses, "status", nil, fmt.Sprintf("Statuses to purge (default: %s, %s, %s)",
		jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCancelled))

	JobsCmd.AddCommand(jobsDefinitionsCmd)
	JobsCmd.AddCommand(jobsHistoryCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	JobsCmd.AddCommand(jobsStatsCmd)
	JobsCmd.AddCommand(jobsRetryCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
	JobsCmd.AddCommand(flagCmd("pin", "Keep an execution's card visible", "Pinned", (*jobs.Scheduler).PinJob))
	JobsCmd.AddCommand(flagCmd("unpin", "Release a pinned execution", "Unpinned", (*jobs.Scheduler).UnpinJob))
	JobsCmd.AddCommand(flagCmd("dismiss", "Hide an execution from every user", "Dismissed", (*jobs.Scheduler).DismissJob))
	JobsCmd.AddCommand(jobsPurgeCmd)
}
