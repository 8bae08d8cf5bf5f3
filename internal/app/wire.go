package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/tokenbook/internal/blob/s3"
	"github.com/alanyoungcy/tokenbook/internal/cache/redis"
	"github.com/alanyoungcy/tokenbook/internal/config"
	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/platform/indexer"
	"github.com/alanyoungcy/tokenbook/internal/server/handler"
	"github.com/alanyoungcy/tokenbook/internal/service"
	"github.com/alanyoungcy/tokenbook/internal/store/postgres"
)

// Dependencies bundles the concrete adapters the run modes need. Optional
// adapters are left nil when their backend is not configured.
type Dependencies struct {
	Indexer *indexer.Client

	// Metadata is the overview's asset list: the indexer or the Postgres
	// token registry.
	Metadata domain.MetadataSource

	OfferCache   domain.OfferCache
	SummaryCache domain.SummaryCache
	SignalBus    domain.SignalBus
	LockManager  domain.LockManager
	RateLimiter  domain.RateLimiter

	Exporter service.Exporter

	// HealthChecks probe every connected backend for /api/health.
	HealthChecks map[string]handler.Check
}

// Wire connects the backends cfg asks for and returns them with a cleanup
// function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	idx := indexer.NewClient(cfg.Indexer.GraphQLURL, cfg.Indexer.APIKey, cfg.Indexer.PageSize, cfg.Indexer.RequestTimeout.Duration)
	deps := &Dependencies{
		Indexer:      idx,
		Metadata:     idx,
		HealthChecks: map[string]handler.Check{},
	}

	// --- Redis ---
	if cfg.RedisEnabled() {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		if cfg.Book.MirrorToRedis {
			deps.OfferCache = redis.NewOfferCache(rc)
		}
		deps.SummaryCache = redis.NewSummaryCache(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.HealthChecks["redis"] = rc.Ping
	} else {
		logger.WarnContext(ctx, "redis disabled: no offer mirror, signal bus, export lock or rate limit")
	}

	// --- PostgreSQL token registry ---
	if cfg.RunsOverview() && cfg.Overview.MetadataSource == config.MetadataPostgres {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Metadata = postgres.NewAssetRegistry(pg.Pool())
		deps.HealthChecks["postgres"] = pg.Pool().Ping
	}

	// --- S3 overview export ---
	if cfg.RunsOverview() && cfg.Overview.ExportEnabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Exporter = s3blob.NewSnapshotExporter(s3blob.NewWriter(sc), cfg.Overview.ExportPrefix)
		deps.HealthChecks["s3"] = sc.Health
	}

	return deps, cleanup, nil
}
