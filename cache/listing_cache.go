package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cuebase/logger"
	"cuebase/model"
	"cuebase/repository"

	"github.com/redis/go-redis/v9"
)

const (
	listingVersionKey = "cuebase:tracks:version"
	listingTTL        = 10 * time.Minute
)

// ListingCache caches track listing pages in Redis. Invalidation bumps a
// version counter baked into every key, so stale pages simply expire instead
// of needing a scan-and-delete.
type ListingCache struct {
	client *redis.Client
}

// NewListingCache creates a cache over the global client. Returns nil when
// Redis is not connected, which callers treat as cache-disabled.
func NewListingCache() *ListingCache {
	if RedisClient == nil {
		return nil
	}
	return &ListingCache{client: RedisClient}
}

// GetTracks returns the cached page for the query, if present.
func (c *ListingCache) GetTracks(ctx context.Context, q repository.ListQuery) ([]*model.Track, bool) {
	key, err := c.key(ctx, q)
	if err != nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var tracks []*model.Track
	if err := json.Unmarshal(payload, &tracks); err != nil {
		logger.Warn("Dropping undecodable listing cache entry", logger.ErrorField(err))
		c.client.Del(ctx, key)
		return nil, false
	}
	return tracks, true
}

// SetTracks stores one page. Failures only cost the cache hit.
func (c *ListingCache) SetTracks(ctx context.Context, q repository.ListQuery, tracks []*model.Track) {
	key, err := c.key(ctx, q)
	if err != nil {
		return
	}
	payload, err := json.Marshal(tracks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, listingTTL).Err(); err != nil {
		logger.Debug("Listing cache write failed", logger.ErrorField(err))
	}
}

// Invalidate makes every cached listing unreachable by bumping the version.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, listingVersionKey).Err(); err != nil {
		logger.Debug("Listing cache invalidation failed", logger.ErrorField(err))
	}
}

func (c *ListingCache) key(ctx context.Context, q repository.ListQuery) (string, error) {
	version, err := c.client.Get(ctx, listingVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}

	encoded, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(encoded)
	return fmt.Sprintf("cuebase:tracks:v%d:%s", version, hex.EncodeToString(sum[:])), nil
}
