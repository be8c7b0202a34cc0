package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"overlaystudio/internal/config"
	"overlaystudio/internal/daemon"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "overlaystudio.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(signalCtx, cfg.DatabasePath())
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	d, err := buildDaemon(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if ctx.configSeen {
		logger.Info("configuration loaded", logging.String("path", ctx.configPath))
	}

	<-signalCtx.Done()
	logger.Info("overlaystudio daemon shutting down")
	return nil
}

func buildDaemon(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	svc, err := workflow.ServicesFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	manager := workflow.NewManager(cfg, store, logger, svc)
	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
