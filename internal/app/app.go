// Package app wires the tokenbook components together and runs them in the
// configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tokenbook/internal/config"
)

// App owns the configuration, logger and the cleanup functions run on
// shutdown in reverse order.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies, starts the components of the configured mode
// and blocks until ctx is cancelled or one of them fails.
//
//	book      offer books + feed
//	overview  overview refresh (+ export)
//	full      both
//
// The HTTP server runs alongside when enabled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	switch a.cfg.Mode {
	case config.ModeBook, config.ModeOverview, config.ModeFull:
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)
	var rt runtime
	if a.cfg.RunsBooks() {
		rt.books = a.startBooks(ctx, g, deps)
	}
	if a.cfg.RunsOverview() {
		rt.overview = a.startOverview(ctx, g, deps)
	}
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, rt)
	}
	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
