package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/covenant"
	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/feed"
	"github.com/alanyoungcy/tokenbook/internal/market"
	"github.com/alanyoungcy/tokenbook/internal/offer"
	"github.com/alanyoungcy/tokenbook/internal/platform/indexer"
	"github.com/alanyoungcy/tokenbook/internal/server"
	"github.com/alanyoungcy/tokenbook/internal/server/handler"
	"github.com/alanyoungcy/tokenbook/internal/server/ws"
	"github.com/alanyoungcy/tokenbook/internal/service"
)

const shutdownTimeout = 5 * time.Second

// runtime holds the services started for the selected mode.
type runtime struct {
	books    *service.BookService
	overview *service.OverviewService
}

// startBooks builds the offer books and the feed keeping them in sync.
func (a *App) startBooks(ctx context.Context, g *errgroup.Group, deps *Dependencies) *service.BookService {
	enc := codec.NewBech32Encoder(a.cfg.Network.AddressPrefix)
	transformer := offer.NewTransformer(
		a.cfg.Network.ProtocolTag,
		enc,
		covenant.NewDeriver(enc),
		domain.FeeSettings{Address: a.cfg.Network.FeeAddress, Divisor: a.cfg.Network.FeeDivisor},
	)

	assets := make([]service.TrackedAsset, 0, len(a.cfg.Book.Assets))
	for _, asset := range a.cfg.Book.Assets {
		assets = append(assets, service.TrackedAsset{ID: asset.ID, Decimals: asset.Decimals})
	}
	books := service.NewBookService(assets, transformer, deps.OfferCache, deps.SignalBus, a.logger)

	dial := func() feed.Session {
		return indexer.NewWSClient(a.cfg.Indexer.WSURL, a.cfg.Indexer.APIKey, a.logger)
	}
	offerFeed := feed.NewOfferFeed(dial, deps.Indexer, books.Books(), a.logger)
	g.Go(func() error {
		defer offerFeed.Close()
		return offerFeed.Run(ctx)
	})

	a.logger.InfoContext(ctx, "offer books started", slog.Any("assets", books.Assets()))
	return books
}

// startOverview builds the aggregator and its refresh and export loops.
func (a *App) startOverview(ctx context.Context, g *errgroup.Group, deps *Dependencies) *service.OverviewService {
	agg := market.NewAggregator(deps.Metadata, deps.Indexer, a.logger)
	overview := service.NewOverviewService(agg, deps.SummaryCache, deps.SignalBus, deps.Exporter, deps.LockManager, a.logger)

	g.Go(func() error {
		return overview.RunLoop(ctx, a.cfg.Overview.RefreshInterval.Duration)
	})
	if deps.Exporter != nil {
		g.Go(func() error {
			return overview.RunExportLoop(ctx, a.cfg.Overview.ExportInterval.Duration)
		})
	}

	a.logger.InfoContext(ctx, "market overview started",
		slog.Duration("refresh_interval", a.cfg.Overview.RefreshInterval.Duration),
		slog.Bool("export", deps.Exporter != nil),
	)
	return overview
}

// apiReaders are the data sources behind the API routes. A nil field
// leaves its routes unregistered.
type apiReaders struct {
	assets   handler.OverviewService
	overview handler.OverviewStatus
	offers   handler.BookService
	books    handler.BookStatus
}

// readers picks the sources for the API. Components running in this
// process are read directly; the others are read from what a replica
// running them mirrors to redis.
func (a *App) readers(rt runtime, deps *Dependencies) apiReaders {
	var r apiReaders
	// Typed nil pointers must not reach the handler interfaces.
	switch {
	case rt.overview != nil:
		r.assets = rt.overview
		r.overview = rt.overview
	case deps.SummaryCache != nil:
		r.assets = service.NewOverviewMirror(deps.SummaryCache, a.logger)
	}
	switch {
	case rt.books != nil:
		r.offers = rt.books
		r.books = rt.books
	case deps.OfferCache != nil:
		ids := make([]string, 0, len(a.cfg.Book.Assets))
		for _, asset := range a.cfg.Book.Assets {
			ids = append(ids, asset.ID)
		}
		mirror := service.NewOfferMirror(deps.OfferCache, ids, a.logger)
		r.offers = mirror
		r.books = mirror
	}
	return r
}

// startServer serves the API for whatever rt contains.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt runtime) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
	}

	r := a.readers(rt, deps)
	if r.assets != nil {
		handlers.Assets = handler.NewAssetHandler(r.assets, a.logger)
	}
	if r.offers != nil {
		handlers.Offers = handler.NewOfferHandler(r.offers, a.logger)
	}
	handlers.Status = handler.NewStatusHandler(a.cfg.Mode, time.Now(), r.overview, r.books)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
