package market

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ids(rows []domain.AssetSummary) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.AssetID
	}
	return out
}

// seeded returns an aggregator whose assets have last prices 3, 1, 2 and
// one asset with no trades.
func seeded(t *testing.T) *Aggregator {
	t.Helper()
	tr := &fakeTrades{
		totals: map[domain.Partition][]domain.TradeTotals{
			domain.PartitionConfirmed: {
				{AssetID: "aaa", OpenOffers: 5, LastTrade: &domain.LastTrade{Price: priceTok(3)}},
				{AssetID: "bbb", OpenOffers: 1, LastTrade: &domain.LastTrade{Price: priceTok(1)}},
				{AssetID: "ccc", OpenOffers: 5, LastTrade: &domain.LastTrade{Price: priceTok(2)}},
			},
		},
	}
	a := newTestAggregator(&fakeMeta{rows: []domain.AssetMetadata{
		meta("ddd", "Dormant", "DRM", 100),
		meta("ccc", "Bitcoin Cash Token", "BCT", 100),
		meta("bbb", "Bitcone", "CONE", 100),
		meta("aaa", "Alpha", "bbb", 100),
	}}, tr)
	require.NoError(t, a.Refresh(context.Background()))
	return a
}

func TestListSorted_MarketCapDescendingUnknownsTrail(t *testing.T) {
	a := seeded(t)
	rows, err := a.ListSorted(SortMarketCap, 0, 10, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc", "bbb", "ddd"}, ids(rows))

	var prev *decimal.Decimal
	for _, r := range rows {
		if !r.MarketCap.Valid {
			continue
		}
		if prev != nil {
			assert.False(t, r.MarketCap.Decimal.GreaterThan(*prev))
		}
		v := r.MarketCap.Decimal
		prev = &v
	}
	assert.False(t, rows[len(rows)-1].MarketCap.Valid)
}

func TestListSorted_AscendingUnknownsStillTrail(t *testing.T) {
	a := seeded(t)
	rows, err := a.ListSorted(SortPrice, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"bbb", "ccc", "aaa", "ddd"}, ids(rows))
}

func TestListSorted_TiesByAssetID(t *testing.T) {
	a := seeded(t)
	rows, err := a.ListSorted(SortOpenOffers, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc", "bbb", "ddd"}, ids(rows))

	rows, err = a.ListSorted(SortOpenOffers, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ddd", "bbb", "aaa", "ccc"}, ids(rows))
}

func TestListSorted_Pagination(t *testing.T) {
	a := seeded(t)
	rows, err := a.ListSorted(SortPrice, 1, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc", "aaa"}, ids(rows))

	rows, err = a.ListSorted(SortPrice, 10, 2, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListSorted_UnknownKey(t *testing.T) {
	a := seeded(t)
	_, err := a.ListSorted(SortKey("volume"), 0, 10, true)
	assert.ErrorIs(t, err, domain.ErrUnknownSortKey)

	_, err = ParseSortKey("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSortKey)

	k, err := ParseSortKey("marketCapSatoshis")
	require.NoError(t, err)
	assert.Equal(t, SortMarketCap, k)
}

func TestSearch_ExactIDShortCircuits(t *testing.T) {
	a := seeded(t)
	// "bbb" is also the symbol of asset aaa; the id match must win alone.
	rows := a.Search("bbb")
	require.Len(t, rows, 1)
	assert.Equal(t, "bbb", rows[0].AssetID)
}

func TestSearch_FuzzyRanksByDistance(t *testing.T) {
	a := seeded(t)
	rows := a.Search("bitcoin")
	require.NotEmpty(t, rows)
	// exact word match on ccc, two edits from "bitcone" on bbb
	assert.Equal(t, []string{"ccc", "bbb"}, ids(rows))
}

func TestSearch_Transposition(t *testing.T) {
	a := seeded(t)
	rows := a.Search("Aplha")
	require.Len(t, rows, 1)
	assert.Equal(t, "aaa", rows[0].AssetID)
}

func TestSearch_NoMatch(t *testing.T) {
	a := seeded(t)
	assert.Empty(t, a.Search("zzzzzzzz"))
	assert.Empty(t, a.Search("   "))
}

func TestSortAndSearchSummaries_OnPlainRows(t *testing.T) {
	rows := seeded(t).Summaries()
	// callers such as the redis mirror hand over rows in arbitrary order
	rows[0], rows[3] = rows[3], rows[0]

	sorted, err := SortSummaries(rows, SortPrice, 0, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"bbb", "ccc"}, ids(sorted))
	assert.Equal(t, "ddd", rows[0].AssetID, "input must not be reordered")

	found := SearchSummaries(rows, "bbb")
	require.Len(t, found, 1)
	assert.Equal(t, "bbb", found[0].AssetID)
	assert.Equal(t, []string{"ccc", "bbb"}, ids(SearchSummaries(rows, "bitcoin")))
}
