package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest decimal count a listed token may declare.
const MaxDecimals = 18

// AssetMetadata is the static description of a listed token.
type AssetMetadata struct {
	AssetID           string          `json:"asset_id"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	Decimals          int32           `json:"decimals"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
}

// Partition splits indexer aggregates by confirmation state.
type Partition string

const (
	PartitionConfirmed   Partition = "confirmed"
	PartitionUnconfirmed Partition = "unconfirmed"
)

// LastTrade is the most recent accepted or open offer seen for an asset.
// Price and Power are the encoded covenant terms; Time is nil when the
// source did not record one.
type LastTrade struct {
	Price    string
	Power    string
	Time     *time.Time
	Accepted bool
}

// TradeTotals is one partition's per-asset offer counts.
type TradeTotals struct {
	AssetID      string
	OpenOffers   int64
	ClosedOffers int64
	LastTrade    *LastTrade
}

// VolumeStat is one partition's 24h trading activity for an asset.
// TokenAmount is in the asset's smallest unit; Value is base-currency units.
type VolumeStat struct {
	AssetID     string
	Trades      int64
	TokenAmount decimal.Decimal
	Value       decimal.Decimal
}

// PricePoint is the encoded price of the latest qualifying transaction
// before a cutoff.
type PricePoint struct {
	AssetID string
	Price   string
	Power   string
	Time    time.Time
}

// AssetSummary is the market overview record for one asset. Optional fields
// are encoded as null when unknown.
type AssetSummary struct {
	AssetMetadata

	OpenOffers        int64               `json:"open_offers"`
	ClosedOffers      int64               `json:"closed_offers"`
	LastPrice         decimal.NullDecimal `json:"last_price"`
	LastTradeAt       *time.Time          `json:"last_trade_at"`
	LastTradeAccepted bool                `json:"last_trade_accepted"`
	Price24hAgo       decimal.NullDecimal `json:"price_24h_ago"`
	PriceDelta        decimal.NullDecimal `json:"price_delta"`
	MarketCap         decimal.NullDecimal `json:"market_cap_satoshis"`
	Trades24h         int64               `json:"trades_24h"`
	TokenVolume24h    decimal.Decimal     `json:"token_volume_24h"`
	ValueVolume24h    decimal.Decimal     `json:"value_volume_24h"`
}
