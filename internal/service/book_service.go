package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/offer"
)

// mirrorTimeout bounds each redis write made from a book observer.
const mirrorTimeout = 5 * time.Second

// TrackedAsset is one asset whose offer book is kept live.
type TrackedAsset struct {
	ID       string
	Decimals int32
}

// OffersEvent is published on domain.OffersChannel after every book change.
type OffersEvent struct {
	Type    string         `json:"type"`
	AssetID string         `json:"asset_id"`
	Count   int            `json:"count"`
	Offers  []domain.Offer `json:"offers"`
}

// BookService owns the offer books of all tracked assets. Every change is
// mirrored to the offer cache and announced on the signal bus when those
// are configured.
type BookService struct {
	books  map[string]*offer.Book
	order  []string
	cache  domain.OfferCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewBookService creates one book per asset. cache and bus may be nil.
func NewBookService(
	assets []TrackedAsset,
	classifier offer.Classifier,
	cache domain.OfferCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *BookService {
	s := &BookService{
		books:  make(map[string]*offer.Book, len(assets)),
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "book_service")),
	}
	for _, a := range assets {
		if _, dup := s.books[a.ID]; dup {
			continue
		}
		b := offer.NewBook(a.ID, a.Decimals, classifier, logger)
		assetID := a.ID
		b.OnChange(func(offers []domain.Offer) { s.mirror(assetID, offers) })
		s.books[a.ID] = b
		s.order = append(s.order, a.ID)
	}
	return s
}

// Books returns the books in configuration order.
func (s *BookService) Books() []*offer.Book {
	out := make([]*offer.Book, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.books[id])
	}
	return out
}

// Assets returns the tracked asset ids in configuration order.
func (s *BookService) Assets() []string {
	return append([]string(nil), s.order...)
}

// Offers returns the current offers for assetID, cheapest first. It returns
// domain.ErrNotFound when the asset is not tracked.
func (s *BookService) Offers(assetID string) ([]domain.Offer, error) {
	b, ok := s.books[assetID]
	if !ok {
		return nil, fmt.Errorf("book_service: offers %q: %w", assetID, domain.ErrNotFound)
	}
	return b.Offers(), nil
}

// Len returns the number of open offers for assetID; zero when untracked.
func (s *BookService) Len(assetID string) int {
	if b, ok := s.books[assetID]; ok {
		return b.Len()
	}
	return 0
}

// BestOffer returns the cheapest open offer for assetID.
func (s *BookService) BestOffer(assetID string) (domain.Offer, bool) {
	if b, ok := s.books[assetID]; ok {
		return b.Best()
	}
	return domain.Offer{}, false
}

// Loaded reports whether every book has received its snapshot.
func (s *BookService) Loaded() bool {
	for _, b := range s.books {
		if !b.Loaded() {
			return false
		}
	}
	return true
}

func (s *BookService) mirror(assetID string, offers []domain.Offer) {
	if s.cache == nil && s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.SetOffers(ctx, assetID, offers); err != nil {
			s.logger.WarnContext(ctx, "mirror offers failed",
				slog.String("asset", assetID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus == nil {
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	payload, err := json.Marshal(OffersEvent{Type: "offers", AssetID: assetID, Count: len(offers), Offers: offers})
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal offers event", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.OffersChannel(assetID), payload); err != nil {
		s.logger.WarnContext(ctx, "publish offers failed",
			slog.String("asset", assetID),
			slog.String("error", err.Error()),
		)
	}
}
