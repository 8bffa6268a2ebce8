package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/am"
	"github.com/Finn-coder2026/jolli-demo-sub011/docs"
	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/integrations"
	"github.com/Finn-coder2026/jolli-demo-sub011/internal/httpclient"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs/tenants"
	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
	"github.com/Finn-coder2026/jolli-demo-sub011/notify"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
	"github.com/Finn-coder2026/jolli-demo-sub011/trigger"
	"github.com/Finn-coder2026/jolli-demo-sub011/webhook"
)

// engineOptions tunes how the CLI wires the engine
type engineOptions struct {
	Memory  bool   // Keep job history in memory instead of per-tenant SQLite files
	DocsDir string // Overrides triggers.docs_dir
	Sink    notify.Sink
	Recover bool // Fail executions a previous run left unfinished
}

// engine is every component a command needs, wired from configuration
type engine struct {
	cfg      *am.Config
	log      *zap.SugaredLogger
	registry *prometheus.Registry
	metrics  *jobs.Metrics
	docs     *docs.DirSource
	notifier *notify.Publisher
	tenants  *tenants.Manager
	webhooks *webhook.Adapter

	mu           sync.Mutex
	integrations map[string]*tenantIntegrations
}

// tenantIntegrations are the integration records of one tenant
type tenantIntegrations struct {
	manager       *integrations.MemoryManager
	installations *integrations.MemoryInstallationDao
}

func newEngine(ctx context.Context, cfg *am.Config, opts engineOptions) (*engine, error) {
	log := logger.ComponentLogger("engine")

	docsDir := cfg.Triggers.DocsDir
	if opts.DocsDir != "" {
		docsDir = opts.DocsDir
	}
	sink, err := notificationSink(cfg.Notify, opts.Sink)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	e := &engine{
		cfg:          cfg,
		log:          log,
		registry:     reg,
		metrics:      jobs.InitPrometheusMetrics(cfg.Metrics.Namespace, reg),
		docs:         docs.NewDirSource(docsDir, log),
		integrations: make(map[string]*tenantIntegrations),
	}

	e.notifier = notify.NewPublisher(notify.Options{
		Sink:             sink,
		QueueSize:        cfg.Notify.QueueSize,
		SubscriberBuffer: cfg.Jobs.SubscriberBuffer,
		RatePerSec:       cfg.Notify.RatePerSec,
		Logger:           log,
	})
	e.notifier.Start(ctx)

	var stores tenants.StoreFactory = tenants.SQLiteStoreFactory{Dir: cfg.Database.TenantDir, Logger: log}
	if opts.Memory {
		stores = tenants.MemoryStoreFactory{}
	}
	e.tenants = tenants.NewManager(tenants.Options{
		Stores:          stores,
		Setup:           e.setupTenant,
		Attacher:        e.notifier,
		Logger:          log,
		Metrics:         e.metrics,
		MaxConcurrent:   cfg.Jobs.MaxConcurrent,
		MaxTriggerDepth: cfg.Jobs.MaxTriggerDepth,

		RecoverInterrupted: opts.Recover && !opts.Memory,
	})
	e.webhooks = webhook.NewAdapter(e.tenants, webhook.Options{Logger: log})
	return e, nil
}

// notificationSink picks override, then an HTTP receiver, then the log
func notificationSink(cfg am.NotifyConfig, override notify.Sink) (notify.Sink, error) {
	if override != nil {
		return override, nil
	}
	if cfg.URL == "" {
		return notify.LogSink{Logger: logger.ComponentLogger("notify")}, nil
	}
	client := httpclient.New(httpclient.Options{Timeout: notify.DefaultSendTimeout, AllowPrivate: cfg.AllowPrivate})
	sink, err := notify.NewHTTPSink(cfg.URL, client)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// setupTenant registers the trigger and integration jobs on a new scheduler
func (e *engine) setupTenant(_ context.Context, ts *tenants.TenantScheduler) error {
	ti := e.integrationsFor(ts.Tenant)
	log := logger.ChildLogger(e.log, ts.Tenant.LogFields()...)

	resolver := trigger.NewResolver(e.docs, trigger.Options{
		Branches:     integrations.BranchLookup{Integrations: ti.manager},
		RunScriptJob: e.cfg.Triggers.RunScriptJob,
		Fallback:     e.cfg.Triggers.DefaultBranch,
		Logger:       log,
		Metrics:      e.metrics,
	})
	if err := trigger.Register(ts.Scheduler, resolver, trigger.LoggingRunner{}); err != nil {
		return err
	}

	behaviors := integrations.NewRegistry(integrations.NewGitHub(ti.manager, ti.installations, log))
	return behaviors.Register(ts.Scheduler)
}

func (e *engine) integrationsFor(tc tenant.Context) *tenantIntegrations {
	e.mu.Lock()
	defer e.mu.Unlock()

	ti, ok := e.integrations[tc.Key()]
	if !ok {
		ti = &tenantIntegrations{
			manager:       integrations.NewMemoryManager(),
			installations: integrations.NewMemoryInstallationDao(),
		}
		e.integrations[tc.Key()] = ti
	}
	return ti
}

// scheduler resolves the tenant from command flags
func (e *engine) scheduler(ctx context.Context, tenantID, orgID string) (*tenants.TenantScheduler, error) {
	ts, err := e.tenants.GetScheduler(ctx, tenantID, orgID)
	if err != nil {
		return nil, errors.WithHint(err, "pass --tenant and --org")
	}
	return ts, nil
}

// openPersistedTenants opens a scheduler for every tenant database on disk
func (e *engine) openPersistedTenants(ctx context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(e.cfg.Database.TenantDir, "*", "*.db"))
	if err != nil {
		return 0, errors.Wrap(err, "failed to scan tenant databases")
	}

	opened := 0
	for _, path := range matches {
		tenantID := filepath.Base(filepath.Dir(path))
		orgID := strings.TrimSuffix(filepath.Base(path), ".db")
		if _, err := e.tenants.GetScheduler(ctx, tenantID, orgID); err != nil {
			e.log.Warnw("Skipping tenant database", "path", path, logger.FieldError, err)
			continue
		}
		opened++
	}
	return opened, nil
}

// docsDirExists reports whether trigger documents can be watched
func (e *engine) docsDirExists() bool {
	info, err := os.Stat(e.docs.Dir())
	return err == nil && info.IsDir()
}

// close drains every scheduler, then the notifier
func (e *engine) close(ctx context.Context) error {
	err := e.tenants.Shutdown(ctx)
	if nerr := e.notifier.Shutdown(ctx); nerr != nil {
		err = errors.CombineErrors(err, nerr)
	}
	return err
}
