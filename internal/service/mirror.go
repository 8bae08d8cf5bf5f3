package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/market"
)

// readTimeout bounds each redis read made on behalf of an API request.
const readTimeout = 3 * time.Second

// OfferMirror serves offer books from the offer cache, which a replica
// running the books keeps current. It lets an overview-only replica answer
// offer queries without connecting to the indexer websocket.
type OfferMirror struct {
	cache  domain.OfferCache
	assets []string
	logger *slog.Logger
}

// NewOfferMirror creates an OfferMirror for the given asset ids.
func NewOfferMirror(cache domain.OfferCache, assets []string, logger *slog.Logger) *OfferMirror {
	var ids []string
	for _, id := range assets {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return &OfferMirror{
		cache:  cache,
		assets: ids,
		logger: logger.With(slog.String("component", "offer_mirror")),
	}
}

// Assets returns the mirrored asset ids in configuration order.
func (m *OfferMirror) Assets() []string {
	return append([]string(nil), m.assets...)
}

// Offers returns the cached book of assetID, cheapest first. It returns
// domain.ErrNotFound when the asset is not mirrored or nothing has been
// written for it yet.
func (m *OfferMirror) Offers(assetID string) ([]domain.Offer, error) {
	if !slices.Contains(m.assets, assetID) {
		return nil, fmt.Errorf("offer_mirror: offers %q: %w", assetID, domain.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	offers, err := m.cache.GetOffers(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("offer_mirror: offers %q: %w", assetID, err)
	}
	return offers, nil
}

// Len returns the cached book size of assetID; zero when unknown.
func (m *OfferMirror) Len(assetID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	n, err := m.cache.Count(ctx, assetID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.WarnContext(ctx, "count offers failed",
				slog.String("asset", assetID),
				slog.String("error", err.Error()),
			)
		}
		return 0
	}
	return n
}

// BestOffer returns the cheapest cached offer of assetID.
func (m *OfferMirror) BestOffer(assetID string) (domain.Offer, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	o, err := m.cache.BestOffer(ctx, assetID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.WarnContext(ctx, "best offer failed",
				slog.String("asset", assetID),
				slog.String("error", err.Error()),
			)
		}
		return domain.Offer{}, false
	}
	return o, true
}

// OverviewMirror serves the market overview from the summary cache, which
// a replica running the aggregator keeps current.
type OverviewMirror struct {
	cache  domain.SummaryCache
	logger *slog.Logger
}

// NewOverviewMirror creates an OverviewMirror.
func NewOverviewMirror(cache domain.SummaryCache, logger *slog.Logger) *OverviewMirror {
	return &OverviewMirror{cache: cache, logger: logger.With(slog.String("component", "overview_mirror"))}
}

// ListSorted orders the cached overview by key and returns one page.
func (m *OverviewMirror) ListSorted(key market.SortKey, offset, limit int, ascending bool) ([]domain.AssetSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	rows, err := m.cache.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("overview_mirror: list: %w", err)
	}
	return market.SortSummaries(rows, key, offset, limit, ascending)
}

// Search matches query against the cached overview.
func (m *OverviewMirror) Search(query string) []domain.AssetSummary {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	rows, err := m.cache.List(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "search failed", slog.String("error", err.Error()))
		return nil
	}
	return market.SearchSummaries(rows, query)
}

// Summary returns the cached overview record of assetID.
func (m *OverviewMirror) Summary(assetID string) (domain.AssetSummary, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	s, err := m.cache.Get(ctx, assetID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.WarnContext(ctx, "get summary failed",
				slog.String("asset", assetID),
				slog.String("error", err.Error()),
			)
		}
		return domain.AssetSummary{}, false
	}
	return s, true
}

// AssetMetadata returns the metadata embedded in the cached record.
func (m *OverviewMirror) AssetMetadata(assetID string) (domain.AssetMetadata, bool) {
	s, ok := m.Summary(assetID)
	return s.AssetMetadata, ok
}
