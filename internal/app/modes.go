package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
	"github.com/alanyoungcy/auctionhouse/internal/market"
	"github.com/alanyoungcy/auctionhouse/internal/server"
	"github.com/alanyoungcy/auctionhouse/internal/server/handler"
	"github.com/alanyoungcy/auctionhouse/internal/server/ws"
	"github.com/alanyoungcy/auctionhouse/internal/service"
)

// shutdownTimeout bounds HTTP drain and the final persistence flush.
const shutdownTimeout = 5 * time.Second

// marketStack is the running marketplace built by buildMarket.
type marketStack struct {
	engine    *market.Engine
	gateway   *ledger.Gateway
	events    *market.Events
	persister *market.Persister
	sweeper   *market.Sweeper
}

func (a *App) buildMarket(ctx context.Context, deps *Dependencies) (*marketStack, error) {
	mc := a.cfg.Market

	gateway := ledger.NewGateway(deps.AccountStore, deps.Presence, deps.Inventory, a.logger)
	persister := market.NewPersister(deps.ListingStore, market.PersisterConfig{
		Workers:   mc.PersistWorkers,
		QueueSize: mc.PersistQueueSize,
		Timeout:   mc.PersistTimeout.Duration,
	}, a.logger)
	registry := market.NewRegistry(persister, market.RegistryConfig{
		MinDuration: mc.MinDuration.Duration,
		MaxDuration: mc.MaxDuration.Duration,
	}, a.logger)
	events := market.NewEvents(deps.SignalBus, deps.AuditStore, mc.EventBuffer, a.logger).
		WithAlerter(deps.Notifier)
	engine := market.NewEngine(registry, gateway, deps.Inventory, events, deps.RateLimiter, market.EngineConfig{
		BidRateLimit:  mc.BidRateLimit,
		BidRateWindow: mc.BidRateWindow.Duration,
	}, a.logger)

	n, err := engine.Load(ctx, deps.ListingStore)
	if err != nil {
		_ = persister.Close(ctx)
		return nil, fmt.Errorf("load listings: %w", err)
	}
	a.logger.InfoContext(ctx, "restored live listings", slog.Int("count", n))

	return &marketStack{
		engine:    engine,
		gateway:   gateway,
		events:    events,
		persister: persister,
		sweeper:   market.NewSweeper(engine, mc.SweepInterval.Duration, a.logger),
	}, nil
}

// FullMode runs the marketplace, its HTTP and WebSocket surface, and the
// archive job when archiving is enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.runMarket(ctx, deps, a.cfg.Archive.Enabled)
}

// EngineMode runs the marketplace and its HTTP surface without archiving, for
// deployments where a separate replica runs archive mode.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")
	return a.runMarket(ctx, deps, false)
}

// ArchiveMode runs only the archive job.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not wired")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveJob(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

func (a *App) runMarket(ctx context.Context, deps *Dependencies, archive bool) error {
	stack, err := a.buildMarket(ctx, deps)
	if err != nil {
		return fmt.Errorf("%s mode: %w", a.cfg.Mode, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return stack.events.Run(gctx)
	})
	g.Go(func() error {
		return stack.sweeper.Run(gctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(gctx, g, deps, stack)
	}
	if archive && deps.Archiver != nil {
		a.startArchiveJob(gctx, g, deps)
	}

	runErr := ignoreCanceled(g.Wait())

	// Drain queued listing writes so a restart sees the final state.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stack.persister.Close(flushCtx); err != nil {
		a.logger.Warn("persister did not drain before shutdown", slog.String("error", err.Error()))
	}
	return runErr
}

func (a *App) startArchiveJob(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var alert domain.Alerter
	if deps.Notifier != nil {
		alert = deps.Notifier
	}
	job := service.NewArchiveJob(
		deps.Archiver,
		deps.LockManager,
		alert,
		a.cfg.Archive.Interval.Duration,
		a.cfg.Archive.Retention(),
		a.logger,
	)
	g.Go(func() error {
		return job.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, stack *marketStack) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      a.startedAt,
		Active:         stack.engine.Len,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.HealthChecks, stack.engine.Len, a.logger),
		Status:   handler.NewStatusHandler(a.cfg.Mode, a.cfg.Storage.Driver, a.startedAt),
		Listings: handler.NewListingHandler(stack.engine, a.logger),
		Actors:   handler.NewActorHandler(stack.gateway, a.logger),
		Feed:     handler.NewFeedHandler(deps.Stream, deps.AuditStore, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Limiter:     deps.RateLimiter,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a cancelled context as a clean shutdown.
func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
