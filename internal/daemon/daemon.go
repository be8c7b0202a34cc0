package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"overlaystudio/internal/api"
	"overlaystudio/internal/config"
	"overlaystudio/internal/deps"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/preflight"
	"overlaystudio/internal/staging"
	"overlaystudio/internal/workflow"
)

// Daemon owns the job store, the workflow manager and the HTTP API, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	depsMu sync.RWMutex
	deps   []deps.Status

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	APIAddress   string
	DatabasePath string
	LockFilePath string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	handler, err := api.New(api.Config{
		Settings: cfg,
		Manager:  wf,
		Logger:   logger,
		Status:   d.apiStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("build api: %w", err)
	}
	d.api = newAPIServer(cfg.Paths.APIBind, handler, d.logger)
	return d, nil
}

// Start acquires the daemon lock, sweeps stale scratch files, repairs
// interrupted jobs, launches the workflow manager and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another overlaystudio daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	staging.CleanStale(runCtx, d.cfg.Paths.WorkDir, staging.DefaultMaxAge, d.logger)
	if err := d.workflow.Recover(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("recover jobs: %w", err)
	}
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)

	d.refreshDependencies()
	d.logger.Info("overlaystudio daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop shuts the API down, waits for the task in flight and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("overlaystudio daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// APIAddress returns the address the API listens on, or "" before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.depsMu.RLock()
	dependencies := append([]deps.Status(nil), d.deps...)
	d.depsMu.RUnlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.address(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Status(),
		Dependencies: dependencies,
	}
}

func (d *Daemon) apiStatus(context.Context) api.DaemonStatus {
	status := d.Status()
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Dependencies: status.Dependencies,
	}
}

func (d *Daemon) refreshDependencies() {
	statuses := preflight.CheckSystemDeps(d.cfg)
	d.depsMu.Lock()
	d.deps = statuses
	d.depsMu.Unlock()

	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(d.logger, "required dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, missing.Description+" will fail"),
			logging.String(logging.FieldErrorHint, "install it or fix the configured path"),
		)
	}
}
