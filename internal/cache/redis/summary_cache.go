package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// summaryTTL bounds how long a stale overview survives when refreshes stop.
const summaryTTL = 30 * time.Minute

// SummaryCache implements domain.SummaryCache with one hash holding every
// asset's JSON-encoded summary.
//
// Key schema:
//
//	overview:summaries - hash mapping asset id -> summary JSON
type SummaryCache struct {
	c *Client
}

// NewSummaryCache creates a SummaryCache backed by the given Client.
func NewSummaryCache(c *Client) *SummaryCache {
	return &SummaryCache{c: c}
}

func (sc *SummaryCache) hashKey() string { return sc.c.key("overview:summaries") }

// SetAll replaces the cached overview.
func (sc *SummaryCache) SetAll(ctx context.Context, summaries []domain.AssetSummary) error {
	key := sc.hashKey()

	pipe := sc.c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, s := range summaries {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("redis: marshal summary %s: %w", s.AssetID, err)
		}
		pipe.HSet(ctx, key, s.AssetID, data)
	}
	pipe.Expire(ctx, key, summaryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set summaries: %w", err)
	}
	return nil
}

// Get returns one cached summary. It returns domain.ErrNotFound when the
// asset is not cached.
func (sc *SummaryCache) Get(ctx context.Context, assetID string) (domain.AssetSummary, error) {
	data, err := sc.c.rdb.HGet(ctx, sc.hashKey(), assetID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AssetSummary{}, domain.ErrNotFound
		}
		return domain.AssetSummary{}, fmt.Errorf("redis: get summary %s: %w", assetID, err)
	}

	var s domain.AssetSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.AssetSummary{}, fmt.Errorf("redis: unmarshal summary %s: %w", assetID, err)
	}
	return s, nil
}

// List returns every cached summary ordered by asset id.
func (sc *SummaryCache) List(ctx context.Context) ([]domain.AssetSummary, error) {
	vals, err := sc.c.rdb.HGetAll(ctx, sc.hashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list summaries: %w", err)
	}

	out := make([]domain.AssetSummary, 0, len(vals))
	for id, data := range vals {
		var s domain.AssetSummary
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("redis: unmarshal summary %s: %w", id, err)
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.AssetSummary) int { return strings.Compare(a.AssetID, b.AssetID) })
	return out, nil
}

// Compile-time interface check.
var _ domain.SummaryCache = (*SummaryCache)(nil)
