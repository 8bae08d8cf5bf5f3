package offer

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// Classifier turns a raw transaction into an offer or a rejection.
type Classifier interface {
	Transform(assetID string, decimals int32, tx domain.RawTx) Result
}

// Book is the live set of open offers for one asset, ordered by price
// ascending. Ties keep arrival order.
//
// A book starts unloaded. Live batches received before LoadSnapshot are
// buffered and replayed on top of the snapshot. Outputs that have been seen
// spent are never reopened.
type Book struct {
	assetID    string
	decimals   int32
	classifier Classifier
	logger     *slog.Logger

	// applyMu serialises mutation and observer notification.
	applyMu   sync.Mutex
	loaded    bool
	pending   []domain.Batch
	closed    map[domain.UtxoRef]struct{}
	observers []func([]domain.Offer)

	mu     sync.RWMutex
	offers []domain.Offer
}

// NewBook creates an empty, unloaded book for assetID.
func NewBook(assetID string, decimals int32, classifier Classifier, logger *slog.Logger) *Book {
	return &Book{
		assetID:    assetID,
		decimals:   decimals,
		classifier: classifier,
		logger:     logger.With(slog.String("component", "offer_book"), slog.String("asset", assetID)),
		closed:     make(map[domain.UtxoRef]struct{}),
	}
}

// AssetID returns the asset this book tracks.
func (b *Book) AssetID() string { return b.assetID }

// OnChange registers fn to be called after every processed batch or
// snapshot load. Observers run synchronously in registration order and
// receive their own copy of the offers.
func (b *Book) OnChange(fn func([]domain.Offer)) {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()
	b.observers = append(b.observers, fn)
}

// Offers returns a copy of the current open offers in price order.
func (b *Book) Offers() []domain.Offer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.offers)
}

// Len returns the number of open offers.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.offers)
}

// Best returns the cheapest open offer.
func (b *Book) Best() (domain.Offer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.offers) == 0 {
		return domain.Offer{}, false
	}
	return b.offers[0], true
}

// Loaded reports whether a snapshot has been applied since the last resync.
func (b *Book) Loaded() bool {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()
	return b.loaded
}

// BeginResync marks the book unloaded so live batches are buffered until
// the next LoadSnapshot. Current offers stay readable meanwhile.
func (b *Book) BeginResync() {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()
	b.loaded = false
	b.pending = nil
}

// LoadSnapshot replaces the open set with the offers found in txs, replays
// any buffered batches, then notifies observers once.
func (b *Book) LoadSnapshot(txs []domain.RawTx) {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()

	next := make([]domain.Offer, 0, len(txs))
	for _, tx := range txs {
		next = b.insert(next, tx)
	}
	pending := b.pending
	for _, batch := range pending {
		next = b.applyBatch(next, batch)
	}
	b.pending = nil
	b.loaded = true

	b.logger.Debug("snapshot loaded",
		slog.Int("txs", len(txs)),
		slog.Int("replayed", len(pending)),
		slog.Int("offers", len(next)),
	)
	b.commit(next)
}

// Apply processes one live notification batch. Confirmed-origin batches are
// ignored since the snapshot already covers confirmed state.
func (b *Book) Apply(batch domain.Batch) {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()

	if batch.Kind == domain.BatchConfirmed {
		return
	}
	if !b.loaded {
		b.pending = append(b.pending, batch)
		return
	}

	b.mu.RLock()
	next := slices.Clone(b.offers)
	b.mu.RUnlock()

	next = b.applyBatch(next, batch)
	b.logger.Debug("batch applied",
		slog.Int("txs", len(batch.Txs)),
		slog.Int("offers", len(next)),
	)
	b.commit(next)
}

// applyBatch removes every offer spent by any input in the batch, then
// inserts the offers the batch opens.
func (b *Book) applyBatch(offers []domain.Offer, batch domain.Batch) []domain.Offer {
	spent := make(map[domain.UtxoRef]struct{})
	for _, tx := range batch.Txs {
		for _, in := range tx.Inputs {
			spent[in.Spends()] = struct{}{}
		}
	}
	if len(spent) > 0 {
		offers = slices.DeleteFunc(offers, func(o domain.Offer) bool {
			if _, ok := spent[o.Ref]; ok {
				b.closed[o.Ref] = struct{}{}
				return true
			}
			return false
		})
	}
	for _, tx := range batch.Txs {
		offers = b.insert(offers, tx)
	}
	return offers
}

// insert transforms tx and adds the resulting offer, replacing an open offer
// with the same output in place.
func (b *Book) insert(offers []domain.Offer, tx domain.RawTx) []domain.Offer {
	res := b.classifier.Transform(b.assetID, b.decimals, tx)
	if !res.OK() {
		if res.Reason != ReasonNoMarker {
			b.logger.Debug("transaction rejected",
				slog.String("tx_id", tx.TxID),
				slog.String("reason", string(res.Reason)),
				slog.String("detail", res.Detail),
			)
		}
		return offers
	}
	if _, ok := b.closed[res.Offer.Ref]; ok {
		return offers
	}
	for i := range offers {
		if offers[i].Ref == res.Offer.Ref {
			offers[i] = res.Offer
			return offers
		}
	}
	return append(offers, res.Offer)
}

// commit sorts next, publishes it, and runs observers. Caller holds applyMu.
func (b *Book) commit(next []domain.Offer) {
	slices.SortStableFunc(next, func(x, y domain.Offer) int {
		return x.PricePerUnit.Cmp(y.PricePerUnit)
	})

	b.mu.Lock()
	b.offers = next
	b.mu.Unlock()

	for _, fn := range b.observers {
		fn(slices.Clone(next))
	}
}
