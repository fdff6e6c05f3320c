// Package cache implements the bounded recency view of flagged transactions
// on Redis. It is a derived, best-effort store: it may lag or evict
// independently of the durable store and is never a source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fraudsight/fraudsight/internal/common"
)

const (
	recentKey        = "flagged_recent"
	payloadKeyPrefix = "tx:"
	maxRecent        = 100
)

// FlaggedCache keeps the most-recent-N flagged transaction ids plus a payload
// snapshot per id.
type FlaggedCache struct {
	client *redis.Client
}

// New connects to Redis at url (redis:// form).
func New(url string) (*FlaggedCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return &FlaggedCache{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client) *FlaggedCache {
	return &FlaggedCache{client: client}
}

// Ping verifies connectivity.
func (c *FlaggedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PushFlagged records id as most-recent, evicting beyond the bound, and
// snapshots the raw payload. The list push+trim and the payload set go out as
// one atomic batch so a reader never observes an id without its snapshot.
// Entries are never removed when a later review changes the transaction.
func (c *FlaggedCache) PushFlagged(ctx context.Context, id string, payload []byte) error {
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, recentKey, id)
	pipe.LTrim(ctx, recentKey, 0, maxRecent-1)
	if payload != nil {
		pipe.Set(ctx, payloadKeyPrefix+id, payload, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push flagged %s: %w", id, err)
	}
	return nil
}

// RecentFlaggedIDs returns up to limit ids, most-recent first.
func (c *FlaggedCache) RecentFlaggedIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := c.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent flagged ids: %w", err)
	}
	return ids, nil
}

// GetPayload returns the payload snapshot recorded at flag time.
func (c *FlaggedCache) GetPayload(ctx context.Context, id string) ([]byte, error) {
	payload, err := c.client.Get(ctx, payloadKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("payload for %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload for %s: %w", id, err)
	}
	return payload, nil
}

// Close releases the underlying client.
func (c *FlaggedCache) Close() error {
	return c.client.Close()
}
