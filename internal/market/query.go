package market

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// SortKey names a field the overview can be ordered by.
type SortKey string

const (
	SortOpenOffers   SortKey = "openOffers"
	SortClosedOffers SortKey = "closedOffers"
	SortPrice        SortKey = "price"
	SortMarketCap    SortKey = "marketCapSatoshis"
	SortTokenVolume  SortKey = "tokenVolume"
	SortValueVolume  SortKey = "valueVolume"
	SortPriceDelta   SortKey = "priceDelta"
)

// SortKeys lists every accepted sort key.
var SortKeys = []SortKey{
	SortOpenOffers, SortClosedOffers, SortPrice, SortMarketCap,
	SortTokenVolume, SortValueVolume, SortPriceDelta,
}

// ParseSortKey validates s as a sort key.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if !slices.Contains(SortKeys, k) {
		return "", fmt.Errorf("market: sort key %q: %w", s, domain.ErrUnknownSortKey)
	}
	return k, nil
}

// MaxSearchDistance is the largest edit distance a fuzzy match may have.
const MaxSearchDistance = 2

// sortValue extracts the value for key; ok is false when it is unknown.
func sortValue(s domain.AssetSummary, key SortKey) (decimal.Decimal, bool) {
	switch key {
	case SortOpenOffers:
		return decimal.NewFromInt(s.OpenOffers), true
	case SortClosedOffers:
		return decimal.NewFromInt(s.ClosedOffers), true
	case SortPrice:
		return s.LastPrice.Decimal, s.LastPrice.Valid
	case SortMarketCap:
		return s.MarketCap.Decimal, s.MarketCap.Valid
	case SortTokenVolume:
		return s.TokenVolume24h, true
	case SortValueVolume:
		return s.ValueVolume24h, true
	case SortPriceDelta:
		return s.PriceDelta.Decimal, s.PriceDelta.Valid
	}
	return decimal.Zero, false
}

// ListSorted orders the overview by key and returns the page starting at
// offset. See SortSummaries.
func (a *Aggregator) ListSorted(key SortKey, offset, limit int, ascending bool) ([]domain.AssetSummary, error) {
	return SortSummaries(a.current().summaries, key, offset, limit, ascending)
}

// SortSummaries orders a copy of rows by key and returns the page starting
// at offset. A limit of zero or less returns everything after offset.
// Records with an unknown value for key always come last; ties and unknowns
// are ordered by asset id.
func SortSummaries(rows []domain.AssetSummary, key SortKey, offset, limit int, ascending bool) ([]domain.AssetSummary, error) {
	if !slices.Contains(SortKeys, key) {
		return nil, fmt.Errorf("market: list sorted by %q: %w", key, domain.ErrUnknownSortKey)
	}

	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(x, y domain.AssetSummary) int {
		xv, xok := sortValue(x, key)
		yv, yok := sortValue(y, key)
		switch {
		case xok && !yok:
			return -1
		case !xok && yok:
			return 1
		case xok && yok:
			c := xv.Cmp(yv)
			if !ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(x.AssetID, y.AssetID)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []domain.AssetSummary{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

type match struct {
	summary  domain.AssetSummary
	distance int
}

// Search looks up query in the latest overview. See SearchSummaries.
func (a *Aggregator) Search(query string) []domain.AssetSummary {
	snap := a.current()
	if i, ok := snap.index[strings.TrimSpace(query)]; ok {
		return []domain.AssetSummary{snap.summaries[i]}
	}
	return SearchSummaries(snap.summaries, query)
}

// SearchSummaries looks up query as an asset id first and returns that
// record alone when it exists. Otherwise it fuzzy-matches name and symbol,
// ignoring case, and returns matches closest first.
func SearchSummaries(rows []domain.AssetSummary, query string) []domain.AssetSummary {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, s := range rows {
		if s.AssetID == query {
			return []domain.AssetSummary{s}
		}
	}

	q := strings.ToLower(query)
	limit := searchThreshold(q)
	var matches []match
	for _, s := range rows {
		d := min(fieldDistance(q, s.Name), fieldDistance(q, s.Symbol))
		if d <= limit {
			matches = append(matches, match{summary: s, distance: d})
		}
	}
	slices.SortStableFunc(matches, func(x, y match) int {
		if x.distance != y.distance {
			return x.distance - y.distance
		}
		return strings.Compare(x.summary.AssetID, y.summary.AssetID)
	})

	out := make([]domain.AssetSummary, len(matches))
	for i, m := range matches {
		out[i] = m.summary
	}
	return out
}

// searchThreshold shrinks the allowed distance for short queries, which
// would otherwise match almost every short symbol.
func searchThreshold(q string) int {
	return min(MaxSearchDistance, utf8.RuneCountInString(q)/3)
}

// fieldDistance is the smallest OSA distance between q and the whole field,
// any of its words, or the field's prefix of the same length as q.
func fieldDistance(q, field string) int {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return math.MaxInt
	}
	best := edlib.OSADamerauLevenshteinDistance(q, field)
	for _, w := range strings.Fields(field) {
		best = min(best, edlib.OSADamerauLevenshteinDistance(q, w))
	}
	if r := []rune(field); len(r) > utf8.RuneCountInString(q) {
		best = min(best, edlib.OSADamerauLevenshteinDistance(q, string(r[:utf8.RuneCountInString(q)])))
	}
	return best
}

// AssetMetadata returns the metadata of assetID from the latest overview.
func (a *Aggregator) AssetMetadata(assetID string) (domain.AssetMetadata, bool) {
	s, ok := a.Summary(assetID)
	return s.AssetMetadata, ok
}

// Summary returns the overview record of assetID.
func (a *Aggregator) Summary(assetID string) (domain.AssetSummary, bool) {
	snap := a.current()
	i, ok := snap.index[assetID]
	if !ok {
		return domain.AssetSummary{}, false
	}
	return snap.summaries[i], true
}

// Summaries returns every overview record ordered by asset id.
func (a *Aggregator) Summaries() []domain.AssetSummary {
	return slices.Clone(a.current().summaries)
}
