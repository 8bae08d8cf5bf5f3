package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/market"
)

const (
	exportLockKey = "overview-export"
	exportLockTTL = 2 * time.Minute
)

// Exporter writes a copy of the overview to durable storage.
type Exporter interface {
	Export(ctx context.Context, summaries []domain.AssetSummary, at time.Time) (string, error)
}

// OverviewEvent is published on domain.OverviewChannel after each refresh.
type OverviewEvent struct {
	Type      string    `json:"type"`
	UpdatedAt time.Time `json:"updated_at"`
	Count     int       `json:"count"`
}

// OverviewService keeps the market overview fresh and distributes it.
type OverviewService struct {
	agg      *market.Aggregator
	cache    domain.SummaryCache
	bus      domain.SignalBus
	exporter Exporter
	locks    domain.LockManager
	logger   *slog.Logger
	now      func() time.Time
}

// NewOverviewService creates the service. cache, bus, exporter and locks
// are optional.
func NewOverviewService(
	agg *market.Aggregator,
	cache domain.SummaryCache,
	bus domain.SignalBus,
	exporter Exporter,
	locks domain.LockManager,
	logger *slog.Logger,
) *OverviewService {
	return &OverviewService{
		agg:      agg,
		cache:    cache,
		bus:      bus,
		exporter: exporter,
		locks:    locks,
		logger:   logger.With(slog.String("component", "overview_service")),
		now:      time.Now,
	}
}

// Refresh rebuilds the overview once, then caches and announces it. Cache
// and bus failures are logged and do not fail the refresh.
func (s *OverviewService) Refresh(ctx context.Context) error {
	if err := s.agg.Refresh(ctx); err != nil {
		return fmt.Errorf("overview_service: refresh: %w", err)
	}
	summaries := s.agg.Summaries()

	if s.cache != nil {
		if err := s.cache.SetAll(ctx, summaries); err != nil {
			s.logger.WarnContext(ctx, "cache summaries failed", slog.String("error", err.Error()))
		}
	}
	if s.bus != nil {
		payload, _ := json.Marshal(OverviewEvent{Type: "overview", UpdatedAt: s.agg.UpdatedAt(), Count: len(summaries)})
		if err := s.bus.Publish(ctx, domain.OverviewChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "publish overview failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// RunLoop refreshes immediately and then every interval until ctx is done.
func (s *OverviewService) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.ErrorContext(ctx, "overview refresh failed", slog.String("error", err.Error()))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.ErrorContext(ctx, "overview refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Export uploads the current overview. When a lock manager is configured
// only one replica exports at a time; the others get domain.ErrLockHeld.
func (s *OverviewService) Export(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", errors.New("overview_service: export: no exporter configured")
	}
	if s.agg.UpdatedAt().IsZero() {
		return "", fmt.Errorf("overview_service: export: overview not built yet: %w", domain.ErrNotFound)
	}
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, exportLockKey, exportLockTTL)
		if err != nil {
			return "", fmt.Errorf("overview_service: export lock: %w", err)
		}
		defer unlock()
	}

	key, err := s.exporter.Export(ctx, s.agg.Summaries(), s.now())
	if err != nil {
		return "", fmt.Errorf("overview_service: export: %w", err)
	}
	s.logger.InfoContext(ctx, "overview exported", slog.String("key", key))
	return key, nil
}

// RunExportLoop exports every interval until ctx is done.
func (s *OverviewService) RunExportLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := s.Export(ctx)
			switch {
			case err == nil, errors.Is(err, domain.ErrLockHeld):
			case errors.Is(err, domain.ErrNotFound):
				s.logger.DebugContext(ctx, "export skipped", slog.String("error", err.Error()))
			default:
				s.logger.ErrorContext(ctx, "overview export failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ListSorted pages through the overview ordered by key.
func (s *OverviewService) ListSorted(key market.SortKey, offset, limit int, ascending bool) ([]domain.AssetSummary, error) {
	return s.agg.ListSorted(key, offset, limit, ascending)
}

// Search finds assets by id, name or symbol.
func (s *OverviewService) Search(query string) []domain.AssetSummary {
	return s.agg.Search(query)
}

// AssetMetadata returns the static metadata for assetID.
func (s *OverviewService) AssetMetadata(assetID string) (domain.AssetMetadata, bool) {
	return s.agg.AssetMetadata(assetID)
}

// Summary returns the overview record for assetID.
func (s *OverviewService) Summary(assetID string) (domain.AssetSummary, bool) {
	return s.agg.Summary(assetID)
}

// Status reports the outcome of the latest fetch from every source.
func (s *OverviewService) Status() map[market.Source]market.SourceStatus {
	return s.agg.Status()
}

// UpdatedAt returns when the overview was last rebuilt.
func (s *OverviewService) UpdatedAt() time.Time {
	return s.agg.UpdatedAt()
}
