package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/cmd/jolli/commands"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "jolli",
	Short: "jolli - job scheduling and event-triggered automation",
	Long: `jolli - per-tenant job scheduling and event-triggered automation.

Jobs are queued directly or triggered by events. GitHub webhook deliveries
become namespaced events, and trigger documents whose JRN matchers fit a
repository event queue script runs.

Available commands:
  am       - Manage engine configuration ("I am")
  jobs     - Inspect and administer job executions
  trigger  - Dry-run trigger document matching
  webhook  - Replay saved webhook deliveries
  serve    - Run history purges and document watching

Examples:
  jolli am show
  jolli trigger match --org acme --repo widgets
  jolli webhook replay --tenant acme --org docs --event push push.json
  jolli jobs history --tenant acme --org docs --status failed`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configuration output stays clean of log lines
		if cmd.Parent() == commands.AmCmd {
			return nil
		}
		cfg, err := commands.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logger.Initialize(logger.Options{JSON: cfg.Logging.JSON, Level: level}); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigFile, "config", "", "Config file (default: ./jolli.toml, then ~/.jolli/jolli.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.TriggerCmd)
	rootCmd.AddCommand(commands.WebhookCmd)
	rootCmd.AddCommand(commands.ServeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}
