package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"hikfetch/internal/catalog"
	"hikfetch/internal/config"
	"hikfetch/internal/jobs"
	"hikfetch/internal/logging"
	"hikfetch/internal/preflight"
)

// Daemon owns the orchestrator and API server and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	jobs    *jobs.Orchestrator
	catalog *catalog.Store
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	mu        sync.RWMutex
	preflight []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	JobCounts    map[jobs.State]int
	CatalogPath  string
	CatalogStats *catalog.Stats
	CatalogError error
	Preflight    []preflight.Result
}

// New constructs a daemon. The catalog is optional.
func New(cfg *config.Config, orchestrator *jobs.Orchestrator, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || orchestrator == nil || logger == nil {
		return nil, errors.New("daemon requires config, orchestrator, and logger")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		jobs:     orchestrator,
		catalog:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api-server"))
	return d, nil
}

// Start acquires the daemon lock, starts dispatching jobs, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hikfetch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.jobs.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		_ = d.jobs.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("hikfetch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops the API server and the dispatch loop and releases the daemon
// lock. Retrievals already running are left to finish.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if err := d.jobs.Stop(); err != nil {
		logging.WarnWithContext(d.logger, "orchestrator stop incomplete", "daemon_stop_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "dispatch loop may still be winding down"),
		)
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("hikfetch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.catalog != nil {
		return d.catalog.Close()
	}
	return nil
}

// Running reports whether the daemon holds the lock and serves requests.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Handler returns the HTTP API handler.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// SetPreflight records the startup preflight results reported by Status.
func (d *Daemon) SetPreflight(results []preflight.Result) {
	d.mu.Lock()
	d.preflight = append([]preflight.Result(nil), results...)
	d.mu.Unlock()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		JobCounts:    d.jobs.Counts(),
	}

	d.mu.RLock()
	status.Preflight = append([]preflight.Result(nil), d.preflight...)
	d.mu.RUnlock()

	if d.catalog != nil {
		status.CatalogPath = d.catalog.Path()
		stats, err := d.catalog.Stats(ctx)
		if err != nil {
			status.CatalogError = err
		} else {
			status.CatalogStats = &stats
		}
	}
	return status
}
