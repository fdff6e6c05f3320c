package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsight/fraudsight/internal/common"
)

func newTestCache(t *testing.T) *FlaggedCache {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client)
}

func TestPushFlaggedStoresIDAndPayload(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PushFlagged(ctx, "tx-1", []byte(`{"amount":42}`)))

	ids, err := c.RecentFlaggedIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1"}, ids)

	payload, err := c.GetPayload(ctx, "tx-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":42}`, string(payload))
}

func TestPushFlaggedEvictsBeyondBound(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 101; i++ {
		id := fmt.Sprintf("tx-%d", i)
		require.NoError(t, c.PushFlagged(ctx, id, []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}

	ids, err := c.RecentFlaggedIDs(ctx, 200)
	require.NoError(t, err)
	require.Len(t, ids, 100, "bound is 100, oldest evicted")
	assert.Equal(t, "tx-101", ids[0], "most-recent first")
	assert.Equal(t, "tx-2", ids[99], "tx-1 evicted")

	// Every retrievable id has a retrievable snapshot.
	for _, id := range ids {
		_, err := c.GetPayload(ctx, id)
		require.NoError(t, err, "payload for %s", id)
	}
}

func TestRecentFlaggedIDsLimit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, c.PushFlagged(ctx, fmt.Sprintf("tx-%d", i), nil))
	}

	ids, err := c.RecentFlaggedIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-5", "tx-4", "tx-3"}, ids)
}

func TestRecentFlaggedIDsEmpty(t *testing.T) {
	c := newTestCache(t)

	ids, err := c.RecentFlaggedIDs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGetPayloadMissing(t *testing.T) {
	c := newTestCache(t)

	_, err := c.GetPayload(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
