package commands

import (
	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/docs"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jrn"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/trigger"
)

// TriggerCmd groups commands for trigger documents
var TriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Work with trigger documents",
}

var (
	matchOrg    string
	matchRepo   string
	matchBranch string
	matchVerb   string
	matchDocs   string
	matchJSON   bool
)

var triggerMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show which documents an event would activate",
	Long: `Scan the trigger documents and report which ones a repository event
would activate. Nothing is queued.

Examples:
  jolli trigger match --org acme --repo widgets
  jolli trigger match --org acme --repo widgets --branch develop --verb REMOVED`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		verb, err := jrn.ParseVerb(matchVerb)
		if err != nil {
			return err
		}

		dir := cfg.Triggers.DocsDir
		if matchDocs != "" {
			dir = matchDocs
		}
		log := logger.ComponentLogger("trigger")
		resolver := trigger.NewResolver(docs.NewDirSource(dir, log), trigger.Options{
			RunScriptJob: cfg.Triggers.RunScriptJob,
			Fallback:     cfg.Triggers.DefaultBranch,
			Logger:       log,
		})

		res, err := resolver.Match(cmd.Context(), trigger.ResolveRequest{
			Org:    matchOrg,
			Repo:   matchRepo,
			Branch: trigger.ResolveBranch("", matchBranch, cfg.Triggers.DefaultBranch),
			Verb:   verb,
		})
		if err != nil {
			return err
		}
		if matchJSON {
			return printJSON(res)
		}
		return renderMatches(res, resolver.RunScriptJob())
	},
}

func init() {
	triggerMatchCmd.Flags().StringVar(&matchOrg, "org", "", "Repository owner")
	triggerMatchCmd.Flags().StringVar(&matchRepo, "repo", "", "Repository name; empty matches the whole owner")
	triggerMatchCmd.Flags().StringVar(&matchBranch, "branch", "", "Branch (default: triggers.default_branch)")
	triggerMatchCmd.Flags().StringVar(&matchVerb, "verb", string(jrn.VerbCreated), "CREATED, REMOVED or GIT_PUSH")
	triggerMatchCmd.Flags().StringVar(&matchDocs, "docs", "", "Documents directory (default: triggers.docs_dir)")
	triggerMatchCmd.Flags().BoolVar(&matchJSON, "json", false, "Print JSON instead of a table")

	TriggerCmd.AddCommand(triggerMatchCmd)
}
