package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/offer"
	"github.com/alanyoungcy/tokenbook/internal/platform/indexer"
)

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	dialTimeout = 15 * time.Second
)

// Session is one live subscription connection to the indexer.
type Session interface {
	OnBatch(h indexer.BatchHandler)
	Connect(ctx context.Context) error
	Subscribe(assetIDs []string) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Dialer creates a fresh, unconnected session.
type Dialer func() Session

// OfferFeed keeps a set of offer books in sync with the indexer. Each
// connection subscribes first and only then fetches snapshots, so no
// notification can fall between the snapshot and the live stream.
type OfferFeed struct {
	dial      Dialer
	source    domain.TxSource
	books     map[string]*offer.Book
	assetIDs  []string
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewOfferFeed creates a feed for the given books.
func NewOfferFeed(dial Dialer, source domain.TxSource, books []*offer.Book, logger *slog.Logger) *OfferFeed {
	f := &OfferFeed{
		dial:      dial,
		source:    source,
		books:     make(map[string]*offer.Book, len(books)),
		logger:    logger.With(slog.String("component", "offer_feed")),
		done:      make(chan struct{}),
		baseDelay: reconnectDelay,
		maxDelay:  maxReconnectDelay,
	}
	for _, b := range books {
		f.books[b.AssetID()] = b
		f.assetIDs = append(f.assetIDs, b.AssetID())
	}
	return f
}

// Run keeps a session open until ctx is cancelled or Close is called,
// reconnecting with exponential backoff.
func (f *OfferFeed) Run(ctx context.Context) error {
	if len(f.books) == 0 {
		f.logger.Info("no assets configured, exiting")
		return nil
	}

	delay := f.baseDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		loaded, err := f.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}
		if loaded {
			delay = f.baseDelay
		}
		f.logger.Warn("indexer session ended, reconnecting",
			slog.String("error", fmt.Sprint(err)),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, f.maxDelay)
	}
}

// runSession runs one connection. loaded reports whether every book
// received its snapshot before the session ended.
func (f *OfferFeed) runSession(ctx context.Context) (loaded bool, err error) {
	session := f.dial()
	defer session.Close()

	for _, b := range f.books {
		b.BeginResync()
	}
	session.OnBatch(func(batch domain.Batch) {
		b, ok := f.books[batch.AssetID]
		if !ok {
			f.logger.Debug("batch for untracked asset", slog.String("asset", batch.AssetID))
			return
		}
		b.Apply(batch)
	})

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	err = session.Connect(dialCtx)
	cancel()
	if err != nil {
		return false, err
	}
	if err := session.Subscribe(f.assetIDs); err != nil {
		return false, err
	}

	for _, id := range f.assetIDs {
		txs, err := f.source.FetchSnapshot(ctx, id)
		if err != nil {
			return false, fmt.Errorf("feed: snapshot %s: %w", id, err)
		}
		f.books[id].LoadSnapshot(txs)
		f.logger.Info("offer book synced", slog.String("asset", id), slog.Int("offers", f.books[id].Len()))
	}

	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-f.done:
		return true, nil
	case <-session.Done():
		return true, session.Err()
	}
}

// Close stops the feed.
func (f *OfferFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
