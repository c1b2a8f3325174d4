package alerts

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONLoadsOnce(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return []Digest{{ID: "d1", CompanyID: "c1"}}, nil
	}

	key, err := cache.BuildKey(ctx, "alerts", "digests", "c1", "30")
	require.NoError(t, err)

	var first []Digest
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 1, calls)
	require.Len(t, first, 1)
	require.Equal(t, "d1", first[0].ID)

	var second []Digest
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
}

func TestCacheBumpOrphansOldKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "alerts", "digests", "c1", "30")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "alerts", "digests", "c1", "30")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheNilClientPassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "alerts", "digests", "c1", "30")
	require.NoError(t, err)
	require.Equal(t, "alerts:digests:c1:30", key)

	calls := 0
	var out []Digest
	loader := func(context.Context) (interface{}, error) {
		calls++
		return []Digest{{ID: "d1"}}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 2, calls)
	require.NoError(t, cache.Bump(ctx))
}
