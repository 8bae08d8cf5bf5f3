package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/offer"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// valueClassifier prices every transaction with an output 1 at that
// output's value.
type valueClassifier struct{}

func (valueClassifier) Transform(assetID string, _ int32, tx domain.RawTx) offer.Result {
	out, ok := tx.Output(1)
	if !ok {
		return offer.Result{Reason: offer.ReasonNoMarker}
	}
	return offer.Result{Offer: domain.Offer{
		AssetID:      assetID,
		Ref:          domain.UtxoRef{TxID: tx.TxID, Index: 1},
		PricePerUnit: decimal.NewFromInt(int64(out.Value)),
	}}
}

func offerTx(id string, price uint64) domain.RawTx {
	return domain.RawTx{TxID: id, Outputs: []domain.RawOutput{{Index: 1, Value: price}}}
}

type fakeOfferCache struct {
	mu     sync.Mutex
	offers map[string][]domain.Offer
	err    error
}

func (c *fakeOfferCache) SetOffers(_ context.Context, assetID string, offers []domain.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.offers == nil {
		c.offers = map[string][]domain.Offer{}
	}
	c.offers[assetID] = offers
	return nil
}

func (c *fakeOfferCache) GetOffers(_ context.Context, assetID string) ([]domain.Offer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	offers, ok := c.offers[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return offers, nil
}

func (c *fakeOfferCache) Count(_ context.Context, assetID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	offers, ok := c.offers[assetID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return len(offers), nil
}

func (c *fakeOfferCache) BestOffer(_ context.Context, assetID string) (domain.Offer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.offers[assetID]) == 0 {
		return domain.Offer{}, domain.ErrNotFound
	}
	return c.offers[assetID][0], nil
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) messages() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.msgs...)
}

type fakeSummaryCache struct {
	mu   sync.Mutex
	sets [][]domain.AssetSummary
	err  error
}

func (c *fakeSummaryCache) SetAll(_ context.Context, summaries []domain.AssetSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, summaries)
	return nil
}

func (c *fakeSummaryCache) latest() []domain.AssetSummary {
	if len(c.sets) == 0 {
		return nil
	}
	return c.sets[len(c.sets)-1]
}

func (c *fakeSummaryCache) Get(_ context.Context, assetID string) (domain.AssetSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.AssetSummary{}, c.err
	}
	for _, s := range c.latest() {
		if s.AssetID == assetID {
			return s, nil
		}
	}
	return domain.AssetSummary{}, domain.ErrNotFound
}

func (c *fakeSummaryCache) List(context.Context) ([]domain.AssetSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.latest(), nil
}

type fakeLocks struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	last  []domain.AssetSummary
	at    time.Time
}

func (e *fakeExporter) Export(_ context.Context, summaries []domain.AssetSummary, at time.Time) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.last = summaries
	e.at = at
	return "overview/x.json", nil
}

type fakeMeta struct {
	rows []domain.AssetMetadata
	err  error
}

func (m fakeMeta) FetchAssetMetadata(context.Context) ([]domain.AssetMetadata, error) {
	return m.rows, m.err
}

type emptyTrades struct{}

func (emptyTrades) FetchTradeTotals(context.Context, domain.Partition) ([]domain.TradeTotals, error) {
	return nil, nil
}

func (emptyTrades) FetchVolume(context.Context, domain.Partition, time.Time) ([]domain.VolumeStat, error) {
	return nil, nil
}

func (emptyTrades) FetchPriceBefore(context.Context, time.Time) ([]domain.PricePoint, error) {
	return nil, nil
}
