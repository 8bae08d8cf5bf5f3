package market

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// mergeTradeTotals combines the confirmed and unconfirmed partitions per
// asset. Counts are summed. The last trade is chosen by pickLastTrade, so
// the result does not depend on which partition arrived first.
func mergeTradeTotals(confirmed, unconfirmed []domain.TradeTotals) map[string]domain.TradeTotals {
	conf := sumTotals(confirmed)
	unconf := sumTotals(unconfirmed)

	out := make(map[string]domain.TradeTotals, len(conf)+len(unconf))
	for id, c := range conf {
		out[id] = c
	}
	for id, u := range unconf {
		c, ok := out[id]
		if !ok {
			out[id] = u
			continue
		}
		out[id] = domain.TradeTotals{
			AssetID:      id,
			OpenOffers:   c.OpenOffers + u.OpenOffers,
			ClosedOffers: c.ClosedOffers + u.ClosedOffers,
			LastTrade:    pickLastTrade(c.LastTrade, u.LastTrade),
		}
	}
	return out
}

// sumTotals folds duplicate rows within one partition.
func sumTotals(rows []domain.TradeTotals) map[string]domain.TradeTotals {
	out := make(map[string]domain.TradeTotals, len(rows))
	for _, r := range rows {
		prev, ok := out[r.AssetID]
		if !ok {
			out[r.AssetID] = r
			continue
		}
		prev.OpenOffers += r.OpenOffers
		prev.ClosedOffers += r.ClosedOffers
		prev.LastTrade = pickLastTrade(prev.LastTrade, r.LastTrade)
		out[r.AssetID] = prev
	}
	return out
}

// pickLastTrade chooses between two candidate last trades, where preferred
// wins ties. A trade with a timestamp beats one without; between two
// timestamps the later one wins.
func pickLastTrade(fallback, preferred *domain.LastTrade) *domain.LastTrade {
	switch {
	case preferred == nil:
		return fallback
	case fallback == nil:
		return preferred
	case preferred.Time == nil && fallback.Time == nil:
		return preferred
	case preferred.Time == nil:
		return fallback
	case fallback.Time == nil:
		return preferred
	case fallback.Time.After(*preferred.Time):
		return fallback
	default:
		return preferred
	}
}

// mergeVolumes sums volume rows per asset across any number of partitions.
func mergeVolumes(parts ...[]domain.VolumeStat) map[string]domain.VolumeStat {
	out := make(map[string]domain.VolumeStat)
	for _, part := range parts {
		for _, v := range part {
			prev, ok := out[v.AssetID]
			if !ok {
				prev = domain.VolumeStat{AssetID: v.AssetID, TokenAmount: decimal.Zero, Value: decimal.Zero}
			}
			prev.Trades += v.Trades
			prev.TokenAmount = prev.TokenAmount.Add(v.TokenAmount)
			prev.Value = prev.Value.Add(v.Value)
			out[v.AssetID] = prev
		}
	}
	return out
}

// latestPrices keeps the most recent price point per asset.
func latestPrices(points []domain.PricePoint) map[string]domain.PricePoint {
	out := make(map[string]domain.PricePoint, len(points))
	for _, p := range points {
		prev, ok := out[p.AssetID]
		if !ok || p.Time.After(prev.Time) {
			out[p.AssetID] = p
		}
	}
	return out
}
