package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// OfferCache implements domain.OfferCache. Each write replaces the whole
// book of an asset, so the sorted-set score is simply the offer's rank and
// the book's price order, ties included, survives the round trip.
//
// Key schema:
//
//	offers:{assetID}:rank - sorted set of utxo refs (score = rank)
//	offers:{assetID}:data - hash mapping utxo ref -> offer JSON
//	offers:{assetID}:meta - hash with "ts" and "count"
type OfferCache struct {
	c *Client
}

// NewOfferCache creates an OfferCache backed by the given Client.
func NewOfferCache(c *Client) *OfferCache {
	return &OfferCache{c: c}
}

func (oc *OfferCache) rankKey(assetID string) string { return oc.c.key("offers:" + assetID + ":rank") }
func (oc *OfferCache) dataKey(assetID string) string { return oc.c.key("offers:" + assetID + ":data") }
func (oc *OfferCache) metaKey(assetID string) string { return oc.c.key("offers:" + assetID + ":meta") }

// SetOffers atomically replaces the cached book for assetID.
func (oc *OfferCache) SetOffers(ctx context.Context, assetID string, offers []domain.Offer) error {
	rankKey, dataKey, metaKey := oc.rankKey(assetID), oc.dataKey(assetID), oc.metaKey(assetID)

	pipe := oc.c.rdb.TxPipeline()
	pipe.Del(ctx, rankKey, dataKey, metaKey)
	for i, o := range offers {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("redis: marshal offer %s: %w", o.Ref, err)
		}
		member := o.Ref.String()
		pipe.ZAdd(ctx, rankKey, redis.Z{Score: float64(i), Member: member})
		pipe.HSet(ctx, dataKey, member, data)
	}
	pipe.HSet(ctx, metaKey,
		"ts", strconv.FormatInt(time.Now().UnixNano(), 10),
		"count", strconv.Itoa(len(offers)),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set offers %s: %w", assetID, err)
	}
	return nil
}

// GetOffers returns the cached book for assetID in price order. It returns
// domain.ErrNotFound if the book has never been written.
func (oc *OfferCache) GetOffers(ctx context.Context, assetID string) ([]domain.Offer, error) {
	return oc.rangeOffers(ctx, assetID, 0, -1)
}

// BestOffer returns the lowest-priced cached offer for assetID.
func (oc *OfferCache) BestOffer(ctx context.Context, assetID string) (domain.Offer, error) {
	offers, err := oc.rangeOffers(ctx, assetID, 0, 0)
	if err != nil {
		return domain.Offer{}, err
	}
	if len(offers) == 0 {
		return domain.Offer{}, domain.ErrNotFound
	}
	return offers[0], nil
}

// Count returns the size of the cached book for assetID without reading the
// offers. It returns domain.ErrNotFound if the book has never been written.
func (oc *OfferCache) Count(ctx context.Context, assetID string) (int, error) {
	n, err := oc.c.rdb.HGet(ctx, oc.metaKey(assetID), "count").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: count offers %s: %w", assetID, err)
	}
	return n, nil
}

func (oc *OfferCache) rangeOffers(ctx context.Context, assetID string, start, stop int64) ([]domain.Offer, error) {
	pipe := oc.c.rdb.Pipeline()
	metaCmd := pipe.HGet(ctx, oc.metaKey(assetID), "ts")
	refsCmd := pipe.ZRange(ctx, oc.rankKey(assetID), start, stop)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get offers %s: %w", assetID, err)
	}
	if err := metaCmd.Err(); errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}

	refs, _ := refsCmd.Result()
	if len(refs) == 0 {
		return []domain.Offer{}, nil
	}
	vals, err := oc.c.rdb.HMGet(ctx, oc.dataKey(assetID), refs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get offers %s: %w", assetID, err)
	}

	offers := make([]domain.Offer, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var o domain.Offer
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			return nil, fmt.Errorf("redis: unmarshal offer %s: %w", refs[i], err)
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// Compile-time interface check.
var _ domain.OfferCache = (*OfferCache)(nil)
