package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/octmg/octmg/internal/service"
	"github.com/octmg/octmg/pkg/config"
)

var serveConfigPath string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the solve-run service",
	Long: `Serve runs octmg as a long-lived service: it connects to the
configured database and storage, pulls pending solve requests from its
configured sources (database polling or HTTP by default), and drives
each one through the multigrid core via a worker pool.

It runs until interrupted with SIGINT or SIGTERM, at which point it
drains in-flight runs and shuts down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Run with the default config search path
  ` + binName + ` serve

  # Run with an explicit config file
  ` + binName + ` serve --config ./configs/config.yaml`

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	log.Info("Starting octmg service...")
	log.Info("Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildTime)

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info("Configuration loaded successfully")
	log.Info("Worker count: %d", cfg.Scheduler.WorkerCount)
	log.Info("Database: %s://%s:%d/%s", cfg.Database.Type, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	log.Info("Storage: %s", cfg.Storage.Type)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	svc, err := service.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	log.Info("Service started, waiting for runs...")

	select {
	case sig := <-sigChan:
		log.Info("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down...")
	}

	if err := svc.Stop(); err != nil {
		log.Error("Error during shutdown: %v", err)
	}

	log.Info("Service stopped")
	return nil
}
