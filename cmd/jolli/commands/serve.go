package commands

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/maintenance"
)

var serveMetricsAddr string

// ServeCmd runs the engine's background duties until interrupted
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run history purges and document watching until interrupted",
	Long: `Open every tenant database under database.tenant_dir, purge old
executions on jobs.purge_schedule, and reload trigger documents when
triggers.docs_dir changes. SIGINT or SIGTERM shuts down gracefully, letting
running jobs finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		return withEngine(cmd, engineOptions{Recover: true}, func(ctx context.Context, e *engine) error {
			return serve(ctx, e)
		})
	},
}

func serve(ctx context.Context, e *engine) error {
	log := logger.ComponentLogger("serve")

	opened, err := e.openPersistedTenants(ctx)
	if err != nil {
		return err
	}
	log.Infow("Opened tenant schedulers", logger.FieldCount, opened)

	if e.cfg.Jobs.PurgeSchedule != "" {
		purger, err := maintenance.NewPurger(e.tenants, maintenance.PurgeOptions{
			Schedule: e.cfg.Jobs.PurgeSchedule,
			After:    e.cfg.Jobs.PurgeAfter,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		purger.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := purger.Stop(stopCtx); err != nil {
				log.Warnw("Purger did not stop cleanly", logger.FieldError, err)
			}
		}()
		log.Infow("History purge scheduled",
			"schedule", e.cfg.Jobs.PurgeSchedule,
			"next", purger.Next(time.Now()).Format(time.RFC3339),
		)
	}

	if e.docsDirExists() {
		go func() {
			if err := e.docs.Watch(ctx, nil); err != nil {
				log.Warnw("Document watcher stopped", logger.FieldError, err)
			}
		}()
	} else {
		log.Warnw("Trigger documents directory missing, not watching", "dir", e.docs.Dir())
	}

	var srv *http.Server
	if serveMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: serveMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Metrics listener failed", logger.FieldError, err)
			}
		}()
		log.Infow("Serving metrics", "addr", serveMetricsAddr)
	}

	pterm.Success.Println("Engine running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Infow("Shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to stop metrics listener")
		}
	}
	return nil
}

func init() {
	ServeCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Expose prometheus metrics on this address, e.g. :9090")
}
