/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the expense engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, optional YAML file)
  2. Initialize logging
  3. Open the storage backend (file, sqlite or memory)
  4. Connect the AMQP publisher when configured
  5. Create API handler and router
  6. Start the backup scheduler (file backend only)
  7. Start server with graceful shutdown

ENVIRONMENT:
  PORT, ALLOWED_ORIGINS, DATA_BACKEND, DATA_DIR, SQLITE_DB_PATH,
  AMQP_URL, AMQP_EXCHANGE, AMQP_ROUTING_KEY, LOG_LEVEL, BACKUP_INTERVAL.
  EXPENSE_CONFIG names a YAML file whose keys override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and event forwarding
  4. Close publisher and database connections

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
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

	"github.com/warp/expense-engine/api"
	"github.com/warp/expense-engine/config"
	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/notify"
	"github.com/warp/expense-engine/persist"
	"github.com/warp/expense-engine/store/memory"
	"github.com/warp/expense-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: level, Component: logging.ComponentApp})
	logging.SetDefault(logger)

	// Storage
	repo, files, closeRepo, err := openRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeRepo()

	handler := api.NewHandler(repo, logger)
	handler.Files = files
	defer handler.Close()

	// Change notifications
	if cfg.AMQPURL != "" {
		pub, err := notify.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		defer pub.Close()
		handler.Publisher = pub
	}

	// Periodic backups
	if files != nil && cfg.BackupInterval > 0 {
		scheduler := api.NewBackupScheduler(files, handler.LoadedUsers, logger)
		scheduler.Interval = cfg.BackupInterval
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr, "backend", cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openRepository returns the configured backend, the FileStore when the
// file backend is in use, and a close function.
func openRepository(cfg *config.Config, logger *logging.Logger) (persist.Repository, *persist.FileStore, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() { store.Close() }, nil
	case config.BackendMemory:
		return memory.New(), nil, func() {}, nil
	default:
		files, err := persist.NewFileStore(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return files, files, func() {}, nil
	}
}
