// Package commands implements the jolli CLI.
package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/am"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// ConfigFile is set by the --config flag; empty searches the default locations
var ConfigFile string

// shutdownTimeout bounds how long a command waits for running jobs on exit
const shutdownTimeout = 30 * time.Second

// LoadConfig reads the configuration named by --config, or the default cascade
func LoadConfig() (*am.Config, error) {
	if ConfigFile != "" {
		return am.LoadFromFile(ConfigFile)
	}
	return am.Load()
}

// tenantFlags are the --tenant/--org pair every tenant-scoped command takes
type tenantFlags struct {
	tenant string
	org    string
}

func (f *tenantFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.tenant, "tenant", "", "Tenant ID")
	cmd.PersistentFlags().StringVar(&f.org, "org", "", "Org ID within the tenant")
}

// withEngine builds an engine for one command run and always shuts it down
func withEngine(cmd *cobra.Command, opts engineOptions, fn func(ctx context.Context, e *engine) error) error {
	cfg, err := LoadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := newEngine(ctx, cfg, opts)
	if err != nil {
		return err
	}

	runErr := fn(ctx, e)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := e.close(shutdownCtx); err != nil {
		runErr = errors.CombineErrors(runErr, err)
	}
	return runErr
}
