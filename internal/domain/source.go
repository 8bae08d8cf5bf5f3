package domain

import (
	"context"
	"time"
)

// TxSource fetches the current set of unspent candidate offer transactions.
type TxSource interface {
	FetchSnapshot(ctx context.Context, assetID string) ([]RawTx, error)
}

// MetadataSource lists every asset that belongs in the market overview.
type MetadataSource interface {
	FetchAssetMetadata(ctx context.Context) ([]AssetMetadata, error)
}

// TradeSource provides the per-partition aggregates the overview is built from.
type TradeSource interface {
	FetchTradeTotals(ctx context.Context, p Partition) ([]TradeTotals, error)
	FetchVolume(ctx context.Context, p Partition, since time.Time) ([]VolumeStat, error)
	FetchPriceBefore(ctx context.Context, before time.Time) ([]PricePoint, error)
}
