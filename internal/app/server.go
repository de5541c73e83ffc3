package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"db-schema-sync/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP surface of the application.
func (app *Application) Router(logger *slog.Logger) http.Handler {
	h := handlers.NewHandler(app.SyncService, app.Scheduler, app.History, logger.With("component", "http"))
	return handlers.NewRouter(h, handlers.RouterConfig{
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		AdminToken:     app.Config.Server.AdminToken,
		RequireAdmin:   app.Config.Server.IsProduction(),
		Logger:         logger.With("component", "http"),
	})
}

// Serve runs the HTTP server and, when configured, the scheduler until ctx
// is cancelled.
func (app *Application) Serve(ctx context.Context, logger *slog.Logger) error {
	addr := ":" + app.Config.Server.Port
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router(logger),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if app.Config.Sync.AutoStart {
		if err := app.Scheduler.Start(egctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	eg.Go(func() error {
		logger.Info("starting server", "addr", addr, "env", app.Config.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		if app.Scheduler.IsRunning() {
			_ = app.Scheduler.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
