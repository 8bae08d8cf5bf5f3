package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/market"
)

func TestOfferMirror_ReadsCachedBooks(t *testing.T) {
	cache := &fakeOfferCache{}
	require.NoError(t, cache.SetOffers(context.Background(), "a", []domain.Offer{
		{AssetID: "a", Ref: domain.UtxoRef{TxID: "cheap", Index: 1}, PricePerUnit: decimal.NewFromInt(1)},
		{AssetID: "a", Ref: domain.UtxoRef{TxID: "dear", Index: 1}, PricePerUnit: decimal.NewFromInt(9)},
	}))
	m := NewOfferMirror(cache, []string{"a", "b", "a", ""}, discard())

	assert.Equal(t, []string{"a", "b"}, m.Assets())

	offers, err := m.Offers("a")
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "cheap", offers[0].Ref.TxID)
	assert.Equal(t, 2, m.Len("a"))
	best, ok := m.BestOffer("a")
	require.True(t, ok)
	assert.Equal(t, "cheap", best.Ref.TxID)

	// configured but never written by a book replica
	_, err = m.Offers("b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, m.Len("b"))
	_, ok = m.BestOffer("b")
	assert.False(t, ok)

	// not configured at all
	_, err = m.Offers("zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOfferMirror_CacheFailure(t *testing.T) {
	cache := &fakeOfferCache{err: errors.New("redis down")}
	m := NewOfferMirror(cache, []string{"a"}, discard())

	_, err := m.Offers("a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, m.Len("a"))
}

func TestOverviewMirror_ReadsCachedOverview(t *testing.T) {
	cache := &fakeSummaryCache{}
	require.NoError(t, cache.SetAll(context.Background(), []domain.AssetSummary{
		{AssetMetadata: domain.AssetMetadata{AssetID: "a", Name: "Alpha", Symbol: "ALP"}, OpenOffers: 1},
		{AssetMetadata: domain.AssetMetadata{AssetID: "b", Name: "Beta", Symbol: "BET"}, OpenOffers: 5},
	}))
	m := NewOverviewMirror(cache, discard())

	rows, err := m.ListSorted(market.SortOpenOffers, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].AssetID)

	_, err = m.ListSorted("bogus", 0, 10, false)
	assert.ErrorIs(t, err, domain.ErrUnknownSortKey)

	found := m.Search("alpah")
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].AssetID)

	s, ok := m.Summary("b")
	require.True(t, ok)
	assert.Equal(t, int64(5), s.OpenOffers)
	md, ok := m.AssetMetadata("a")
	require.True(t, ok)
	assert.Equal(t, "Alpha", md.Name)

	_, ok = m.Summary("zzz")
	assert.False(t, ok)
}

func TestOverviewMirror_CacheFailure(t *testing.T) {
	m := NewOverviewMirror(&fakeSummaryCache{err: errors.New("redis down")}, discard())

	_, err := m.ListSorted(market.SortPrice, 0, 10, false)
	assert.Error(t, err)
	assert.Nil(t, m.Search("alpha"))
	_, ok := m.Summary("a")
	assert.False(t, ok)
}
