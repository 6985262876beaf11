package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"shaztube/internal/auth"
	"shaztube/internal/repositories"
	"shaztube/internal/server"
	"shaztube/internal/shared"
)

const purgeInterval = 5 * time.Minute

// Serve starts the HTTP API backing the browser workflow.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd.String("config"))

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = port
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	bridge, err := auth.NewBridge(config.Credentials.Google)
	if err != nil {
		return fmt.Errorf("%w: set Google credentials in the config before serving", err)
	}

	uploads := repositories.NewUploadRepository(db)
	states := repositories.NewStateRepository(db)

	app := server.NewApp(config, r.logger, bridge, uploads, states, r.newCatalog)
	httpServer := &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go r.purgeLoop(signalCtx, uploads, states)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-signalCtx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}

// purgeLoop periodically removes expired uploads and OAuth states.
func (r *Runner) purgeLoop(ctx context.Context, uploads *repositories.UploadRepository, states *repositories.StateRepository) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := uploads.PurgeExpired(); err != nil {
				r.logger.Warn("failed to purge expired uploads", "error", err)
			} else if n > 0 {
				r.logger.Info("purged expired uploads", "count", n)
			}
			if _, err := states.PurgeExpired(); err != nil {
				r.logger.Warn("failed to purge expired oauth states", "error", err)
			}
		}
	}
}
