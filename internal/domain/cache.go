package domain

import (
	"context"
	"time"
)

// OfferCache mirrors the live offer book of each asset for external readers.
type OfferCache interface {
	SetOffers(ctx context.Context, assetID string, offers []Offer) error
	GetOffers(ctx context.Context, assetID string) ([]Offer, error)
	BestOffer(ctx context.Context, assetID string) (Offer, error)
	Count(ctx context.Context, assetID string) (int, error)
}

// SummaryCache stores the latest market overview records.
type SummaryCache interface {
	SetAll(ctx context.Context, summaries []AssetSummary) error
	Get(ctx context.Context, assetID string) (AssetSummary, error)
	List(ctx context.Context) ([]AssetSummary, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of change notifications.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// OverviewChannel carries the refreshed market overview.
const OverviewChannel = "ch:overview"

// OffersChannel returns the channel carrying offer book changes for assetID.
func OffersChannel(assetID string) string { return "ch:offers:" + assetID }

// OffersChannelPattern matches every OffersChannel.
const OffersChannelPattern = "ch:offers:*"
