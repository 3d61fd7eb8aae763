// Package app wires the ledger, the oracles and the engine together and
// runs the HTTP server until its context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/config"
	"github.com/atharvakonge/paper-brokerage/internal/handlers"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App owns the configuration, the logger and the cleanup functions that
// run in reverse order on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	// ready, when set, receives the bound listen address
	ready chan<- string
}

// New creates an App from cfg. cfg should already be validated.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and serves the API until ctx is done. A clean
// shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting paper brokerage",
		slog.String("driver", a.cfg.Database.Driver),
		slog.String("market", a.cfg.Market.Provider),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.Serve(ctx, deps)
}

// Serve runs the HTTP API, the trade workers and the simulated price feed
// (if any) against deps.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	if a.cfg.Server.GinMode != "" {
		gin.SetMode(a.cfg.Server.GinMode)
	}

	processor := handlers.NewTradeProcessor(deps.Engine, a.cfg.Server.Workers, a.logger)
	processor.Start()
	defer processor.Stop()

	// A nil *Analyzer must not become a non-nil interface
	var analyzer handlers.SentimentAnalyzer
	if deps.Sentiment != nil {
		analyzer = deps.Sentiment
	}
	h := handlers.NewHandler(deps.Engine, processor, analyzer, a.logger)
	h.SetStreamInterval(a.cfg.Market.Tick.Duration)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
		if a.ready != nil {
			a.ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	})

	if deps.Simulated != nil && a.cfg.Market.Tick.Duration > 0 {
		g.Go(func() error {
			deps.Simulated.Run(gctx, a.cfg.Market.Tick.Duration)
			return nil
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. Safe to
// call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
