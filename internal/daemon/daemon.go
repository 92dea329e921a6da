package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"romkeep/internal/archive"
	"romkeep/internal/batch"
	"romkeep/internal/classifier"
	"romkeep/internal/config"
	"romkeep/internal/jobstore"
	"romkeep/internal/logging"
	"romkeep/internal/normalize"
	"romkeep/internal/pipeline"
	"romkeep/internal/platform"
	"romkeep/internal/plugin"
	"romkeep/internal/promote"
	"romkeep/internal/validation"
)

// Daemon wires the ingestion pipeline, batch manager, plugin registry, and
// API server, and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	orchestrator *pipeline.Orchestrator
	manager      *batch.Manager
	registry     *plugin.Registry
	sandbox      *plugin.Sandbox
	history      *jobstore.Store

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	HistoryDBPath string
	Platforms     int
	LiveJobs      int
	Plugins       int
}

// New constructs a daemon with all pipeline dependencies initialized.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	manifests, err := archive.OpenManifests(cfg.ManifestDir())
	if err != nil {
		return nil, fmt.Errorf("open manifests: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		classifier.New(cfg, logger),
		validation.NewValidator(cfg, manifests, logger),
		normalize.NewNormalizer(cfg, logger),
		archive.NewArchiver(cfg, manifests, logger),
		promote.NewPromoter(cfg, logger),
		logger,
	)

	registry := plugin.NewRegistry(logger)
	loader := plugin.NewLoader(cfg, logger)
	discovered, err := loader.DiscoverLocal(context.Background())
	if err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}
	for _, p := range discovered {
		if err := registry.Register(p); err != nil {
			logger.Warn("plugin rejected",
				logging.String("plugin_id", p.Manifest.ID),
				logging.Error(err),
			)
		}
	}
	orchestrator.ApplyOverrides(registry.Overrides())

	var history *jobstore.Store
	if cfg.Batch.HistoryEnabled {
		history, err = jobstore.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open job history: %w", err)
		}
	}

	var journal batch.Journal
	if history != nil {
		journal = history
	}
	manager := batch.NewManager(cfg, orchestrator, journal, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "romkeepd.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.WithComponent(logger, "daemon"),
		orchestrator: orchestrator,
		manager:      manager,
		registry:     registry,
		sandbox:      plugin.NewSandbox(logger),
		history:      history,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the worker loop and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another romkeep daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.manager.Start(runCtx)
	if err := d.api.start(runCtx); err != nil {
		d.manager.Close()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.manager.Close()
	if d.cancel != nil {
		d.cancel()
	}
	if d.history != nil {
		_ = d.history.Close()
	}
	_ = d.lock.Unlock()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// APIAddr returns the bound API listen address once started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Manager exposes the batch manager for CLI and test wiring.
func (d *Daemon) Manager() *batch.Manager {
	return d.manager
}

// Registry exposes the plugin registry.
func (d *Daemon) Registry() *plugin.Registry {
	return d.registry
}

// History returns the job history store when enabled, else nil.
func (d *Daemon) History() *jobstore.Store {
	return d.history
}

// Status reports current daemon runtime information.
func (d *Daemon) Status() Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Platforms:    len(platform.All()),
		LiveJobs:     len(d.manager.Snapshots()),
	}
	if d.history != nil {
		st.HistoryDBPath = d.history.Path()
	}
	for _, t := range plugin.Types() {
		st.Plugins += len(d.registry.ByType(t))
	}
	return st
}
