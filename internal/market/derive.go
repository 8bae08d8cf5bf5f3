package market

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

var one = decimal.NewFromInt(1)

// summarize builds the overview record for one asset. Missing aggregates
// leave counts at zero and optional fields unknown.
func summarize(
	meta domain.AssetMetadata,
	totals map[string]domain.TradeTotals,
	volumes map[string]domain.VolumeStat,
	prices map[string]domain.PricePoint,
) domain.AssetSummary {
	s := domain.AssetSummary{
		AssetMetadata:  meta,
		TokenVolume24h: decimal.Zero,
		ValueVolume24h: decimal.Zero,
	}

	if t, ok := totals[meta.AssetID]; ok {
		s.OpenOffers = t.OpenOffers
		s.ClosedOffers = t.ClosedOffers
		if lt := t.LastTrade; lt != nil {
			s.LastPrice = decodePrice(meta.Decimals, lt.Power, lt.Price)
			s.LastTradeAt = lt.Time
			s.LastTradeAccepted = lt.Accepted
		}
	}
	if v, ok := volumes[meta.AssetID]; ok {
		s.Trades24h = v.Trades
		s.TokenVolume24h = v.TokenAmount.Shift(-meta.Decimals)
		s.ValueVolume24h = v.Value
	}
	if p, ok := prices[meta.AssetID]; ok {
		s.Price24hAgo = decodePrice(meta.Decimals, p.Power, p.Price)
	}

	s.PriceDelta = priceDelta(s.LastPrice, s.Price24hAgo)
	if s.LastPrice.Valid {
		s.MarketCap = decimal.NewNullDecimal(s.LastPrice.Decimal.Mul(meta.CirculatingSupply))
	}
	return s
}

// priceDelta is last/ago - 1 when both prices are known, zero when only the
// 24h-ago price is known, and unknown otherwise.
func priceDelta(last, ago decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case last.Valid && ago.Valid:
		if ago.Decimal.IsZero() {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(last.Decimal.DivRound(ago.Decimal, codec.InversePrecision).Sub(one))
	case ago.Valid:
		return decimal.NewNullDecimal(decimal.Zero)
	default:
		return decimal.NullDecimal{}
	}
}

func decodePrice(decimals int32, power, price string) decimal.NullDecimal {
	if price == "" {
		return decimal.NullDecimal{}
	}
	p, err := codec.DecodePrice(decimals, power, price)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.Value)
}
