/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales target engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Apply the seed reference-data file, if configured
  5. Create API handler and router
  6. Start the snapshot scheduler
  7. Start server with graceful shutdown

CONFIGURATION:
  See config/config.go for every key. The common ones:
    -port             HTTP server port (PORT, default 8080)
    -db               SQLite database path (DB_PATH, default targets.db)
                      Use ":memory:" for in-memory database
    -seed             Reference-data JSON applied at startup (SEED_FILE)
    -regenerate-mode  replace | preserve_overrides (REGENERATE_MODE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the snapshot scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and the bakery defaults
  ./server -db="./data/targets.db" -seed=./seed/bakery.json

  # Run with in-memory database and human-readable logs
  ./server -db=":memory:" -log-format=text

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovenline/sales-targets/api"
	"github.com/ovenline/sales-targets/config"
	"github.com/ovenline/sales-targets/factory"
	"github.com/ovenline/sales-targets/store/sqlite"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg, logger)

	if cfg.SeedFile != "" {
		if err := seed(context.Background(), handler, cfg.SeedFile); err != nil {
			config.LogError(logger, "main", "seed", err, logrus.Fields{"seed_file": cfg.SeedFile})
			os.Exit(1)
		}
	}

	scheduler := api.NewSnapshotScheduler(handler, cfg.SnapshotMaxAge)
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":            cfg.Addr(),
			"db":              cfg.DBPath,
			"regenerate_mode": cfg.RegenerateMode,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		return
	}

	logger.Info("server stopped")
}

// seed applies a reference-data document through the handler's services.
func seed(ctx context.Context, h *api.Handler, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	rd, err := factory.Parse(data)
	if err != nil {
		return err
	}
	sum, err := factory.Apply(ctx, h.Services(), rd)
	if err != nil {
		return err
	}
	h.Log.WithFields(logrus.Fields{
		"profiles": sum.Profiles,
		"tiers":    sum.Tiers,
		"rates":    sum.Rates,
		"branches": sum.Branches,
		"cashiers": sum.Cashiers,
	}).Info("seed applied")
	return nil
}
