package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"hikfetch/internal/catalog"
	"hikfetch/internal/config"
	"hikfetch/internal/daemon"
	"hikfetch/internal/jobs"
	"hikfetch/internal/logging"
	"hikfetch/internal/notifications"
	"hikfetch/internal/preflight"
	"hikfetch/internal/retrieval"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the hikfetch daemon and blocks until SIGINT, SIGTERM, or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logPath := ""
	if cfg.Paths.LogDir != "" {
		logPath = filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store := openCatalog(cfg, logger)

	pipelineOpts := retrieval.Options{
		ArchiveDir: cfg.Paths.ArchiveDir,
		Timeout:    cfg.RequestTimeout(),
		RetryDelay: cfg.RetryDelay(),
		Logger:     logger,
	}
	if store != nil {
		pipelineOpts.Recorder = store
	}
	notifier := notifications.NewService(cfg)
	orchestrator := jobs.NewOrchestrator(jobs.Options{
		Runner:       retrieval.New(pipelineOpts),
		Notifier:     notifier,
		PollInterval: cfg.PollInterval(),
		StopTimeout:  cfg.StopTimeout(),
		Logger:       logger,
	})

	d, err := daemon.New(cfg, orchestrator, store, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other instance holds the lock"),
		)
		return err
	}
	logger.Info("hikfetch daemon ready",
		logging.String("api", d.Addr()),
		logging.String("archive_dir", cfg.Paths.ArchiveDir),
		logging.String("device_url", cfg.Device.URL),
		logging.String("log_file", logPath),
		logging.Bool("notifications", notifier.Enabled()),
	)

	go runPreflight(signalCtx, cfg, d, logger)

	<-signalCtx.Done()
	logger.Info("hikfetch daemon shutting down")
	return nil
}

func openCatalog(cfg *config.Config, logger *slog.Logger) *catalog.Store {
	if !cfg.Catalog.Enabled {
		return nil
	}
	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		logging.WarnWithContext(logger, "archive catalog unavailable", "catalog_open_failed",
			logging.Error(err),
			logging.String("path", cfg.Catalog.Path),
			logging.String(logging.FieldImpact, "downloaded files will not be indexed"),
			logging.String(logging.FieldErrorHint, "check the catalog path and state directory permissions"),
		)
		return nil
	}
	return store
}

// runPreflight checks the archive and the recorder without delaying startup.
func runPreflight(ctx context.Context, cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) {
	results := preflight.RunAll(ctx, cfg)
	d.SetPreflight(results)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "retrievals may fail until this is resolved"),
			logging.String(logging.FieldErrorHint, "run hikfetch probe for details"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
