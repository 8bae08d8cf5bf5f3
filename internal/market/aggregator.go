// Package market builds the ranked market overview from independently
// fetched metadata, trade totals, volume and historical price datasets.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// Source names one of the fetches behind a refresh.
type Source string

const (
	SourceMetadata          Source = "metadata"
	SourceTotalsConfirmed   Source = "trade_totals_confirmed"
	SourceTotalsUnconfirmed Source = "trade_totals_unconfirmed"
	SourceVolumeConfirmed   Source = "volume_confirmed"
	SourceVolumeUnconfirmed Source = "volume_unconfirmed"
	SourcePrice24hAgo       Source = "price_24h_ago"
)

// window is the trailing period covered by volume and price delta.
const window = 24 * time.Hour

// SourceStatus records the outcome of the latest fetch from one source, so
// a failed source can be told apart from an asset it has no data for.
type SourceStatus struct {
	OK        bool      `json:"ok"`
	Err       string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Entries   int       `json:"entries"`
}

type snapshot struct {
	summaries []domain.AssetSummary // ordered by asset id
	index     map[string]int
	builtAt   time.Time
}

// Aggregator merges the overview sources into per-asset summaries and
// serves sorted and searchable views of the latest merge.
type Aggregator struct {
	meta   domain.MetadataSource
	trades domain.TradeSource
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	snap   *snapshot
	status map[Source]SourceStatus
}

// NewAggregator creates an Aggregator with an empty overview.
func NewAggregator(meta domain.MetadataSource, trades domain.TradeSource, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		meta:   meta,
		trades: trades,
		logger: logger.With(slog.String("component", "market_aggregator")),
		now:    time.Now,
		snap:   &snapshot{index: map[string]int{}},
		status: map[Source]SourceStatus{},
	}
}

// Refresh fetches every source concurrently, waits for all of them, and
// swaps in a freshly merged overview. A failed trade, volume or price source
// degrades to "no data" for every asset; a failed metadata fetch keeps the
// previous overview and returns the error.
func (a *Aggregator) Refresh(ctx context.Context) error {
	now := a.now()
	since := now.Add(-window)

	var (
		meta            []domain.AssetMetadata
		totalsConfirmed []domain.TradeTotals
		totalsUnconf    []domain.TradeTotals
		volumeConfirmed []domain.VolumeStat
		volumeUnconf    []domain.VolumeStat
		prices          []domain.PricePoint
		statusMu        sync.Mutex
	)
	status := make(map[Source]SourceStatus, 6)
	record := func(src Source, n int, err error) {
		st := SourceStatus{OK: err == nil, FetchedAt: a.now(), Entries: n}
		if err != nil {
			st.Err = err.Error()
			a.logger.Warn("source fetch failed", slog.String("source", string(src)), slog.String("error", err.Error()))
		}
		statusMu.Lock()
		status[src] = st
		statusMu.Unlock()
	}

	// No shared cancellation: one failing source must not abort the others.
	var g errgroup.Group
	g.Go(func() error {
		rows, err := a.meta.FetchAssetMetadata(ctx)
		record(SourceMetadata, len(rows), err)
		meta = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.trades.FetchTradeTotals(ctx, domain.PartitionConfirmed)
		record(SourceTotalsConfirmed, len(rows), err)
		totalsConfirmed = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.trades.FetchTradeTotals(ctx, domain.PartitionUnconfirmed)
		record(SourceTotalsUnconfirmed, len(rows), err)
		totalsUnconf = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.trades.FetchVolume(ctx, domain.PartitionConfirmed, since)
		record(SourceVolumeConfirmed, len(rows), err)
		volumeConfirmed = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.trades.FetchVolume(ctx, domain.PartitionUnconfirmed, since)
		record(SourceVolumeUnconfirmed, len(rows), err)
		volumeUnconf = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.trades.FetchPriceBefore(ctx, since)
		record(SourcePrice24hAgo, len(rows), err)
		prices = rows
		return nil
	})
	metaErr := g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	if metaErr != nil {
		return fmt.Errorf("market: refresh metadata: %w", metaErr)
	}

	a.snap = build(a.logger, meta,
		mergeTradeTotals(totalsConfirmed, totalsUnconf),
		mergeVolumes(volumeConfirmed, volumeUnconf),
		latestPrices(prices),
		now,
	)
	a.logger.Debug("overview refreshed", slog.Int("assets", len(a.snap.summaries)))
	return nil
}

// build left-joins metadata with the merged aggregates. Metadata decides
// which assets exist; duplicate metadata rows keep the first. Rows declaring
// decimals outside 0-MaxDecimals are dropped.
func build(
	logger *slog.Logger,
	meta []domain.AssetMetadata,
	totals map[string]domain.TradeTotals,
	volumes map[string]domain.VolumeStat,
	prices map[string]domain.PricePoint,
	at time.Time,
) *snapshot {
	snap := &snapshot{
		summaries: make([]domain.AssetSummary, 0, len(meta)),
		index:     make(map[string]int, len(meta)),
		builtAt:   at,
	}
	seen := make(map[string]struct{}, len(meta))
	for _, m := range meta {
		if m.AssetID == "" {
			continue
		}
		if _, dup := seen[m.AssetID]; dup {
			continue
		}
		seen[m.AssetID] = struct{}{}
		if m.Decimals < 0 || m.Decimals > domain.MaxDecimals {
			logger.Warn("skipping asset with unsupported decimals",
				slog.String("asset_id", m.AssetID),
				slog.Int("decimals", int(m.Decimals)),
			)
			continue
		}
		snap.summaries = append(snap.summaries, summarize(m, totals, volumes, prices))
	}
	slices.SortFunc(snap.summaries, func(x, y domain.AssetSummary) int {
		return strings.Compare(x.AssetID, y.AssetID)
	})
	for i, s := range snap.summaries {
		snap.index[s.AssetID] = i
	}
	return snap
}

// Status returns the outcome of each source's latest fetch.
func (a *Aggregator) Status() map[Source]SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[Source]SourceStatus, len(a.status))
	for k, v := range a.status {
		out[k] = v
	}
	return out
}

// UpdatedAt returns when the current overview was built; zero before the
// first successful refresh.
func (a *Aggregator) UpdatedAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.builtAt
}

func (a *Aggregator) current() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}
