package commands

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
	"github.com/Finn-coder2026/jolli-demo-sub011/webhook"
)

// WebhookCmd groups commands for inbound webhooks
var WebhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Feed webhook deliveries into the engine",
}

var (
	replayTenant   tenantFlags
	replayEvent    string
	replayDelivery string
	replayMemory   bool
	replayMetrics  bool
	replayJSON     bool
)

var webhookReplayCmd = &cobra.Command{
	Use:   "replay <payload.json>",
	Short: "Deliver a saved GitHub payload and run the jobs it triggers",
	Long: `Publish a saved GitHub webhook payload as if it had just arrived, wait
for every triggered job to finish, then print the resulting executions.

Examples:
  jolli webhook replay --tenant acme --org docs --event installation_repositories added.json
  jolli webhook replay --tenant acme --org docs --event push --memory --metrics push.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to read payload %s", args[0])
		}
		delivery := replayDelivery
		if delivery == "" {
			delivery = uuid.NewString()
		}

		return withEngine(cmd, engineOptions{Memory: replayMemory}, func(ctx context.Context, e *engine) error {
			tc := tenant.New(replayTenant.tenant, replayTenant.org)
			res, err := e.webhooks.Deliver(ctx, tc, webhook.Delivery{ID: delivery, Event: replayEvent, Body: body})
			if err != nil {
				return err
			}
			if res.Duplicate {
				pterm.Warning.Printfln("Delivery %s already seen, nothing published", delivery)
				return nil
			}
			pterm.Info.Printfln("Published %s (delivery %s)", res.Event, delivery)

			ts, err := e.scheduler(ctx, tc.TenantID, tc.OrgID)
			if err != nil {
				return err
			}
			if err := ts.Scheduler.Drain(ctx); err != nil {
				return err
			}

			execs, err := ts.Scheduler.ListExecutions(ctx, jobs.ExecutionFilter{Limit: e.cfg.Jobs.HistoryLimit})
			if err != nil {
				return err
			}
			if replayJSON {
				return printJSON(execs)
			}
			if err := renderExecutions(execs); err != nil {
				return err
			}
			if replayMetrics {
				pterm.Println()
				return renderMetrics(e.registry)
			}
			return nil
		})
	},
}

func init() {
	replayTenant.bind(webhookReplayCmd)
	webhookReplayCmd.Flags().StringVar(&replayEvent, "event", "", "X-GitHub-Event value, e.g. installation_repositories")
	webhookReplayCmd.Flags().StringVar(&replayDelivery, "delivery", "", "X-GitHub-Delivery value (default: random)")
	webhookReplayCmd.Flags().BoolVar(&replayMemory, "memory", false, "Keep job history in memory only")
	webhookReplayCmd.Flags().BoolVar(&replayMetrics, "metrics", false, "Print engine metrics after the run")
	webhookReplayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print JSON instead of tables")
	_ = webhookReplayCmd.MarkFlagRequired("event")

	WebhookCmd.AddCommand(webhookReplayCmd)
}
