package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	redisclient "github.com/zatekoja/feedbackhub/internal/infrastructure/clients/redis"
)

func newTestAdapter(t *testing.T) (providers.CacheProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisAdapter(redisclient.NewClientFromRedis(rdb)), mr
}

func TestRedisAdapter_GetSet(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	_, err := adapter.Get(ctx, "analytics:global")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, adapter.Set(ctx, "analytics:global", []byte(`{"totalFeedback":3}`), 60))

	value, err := adapter.Get(ctx, "analytics:global")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalFeedback":3}`, string(value))

	mr.FastForward(61 * time.Second)
	_, err = adapter.Get(ctx, "analytics:global")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestRedisAdapter_Incr(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := adapter.Incr(ctx, "ratelimit:feedback:1.2.3.4", 3600)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	assert.Equal(t, time.Hour, mr.TTL("ratelimit:feedback:1.2.3.4"))
}

func TestRedisAdapter_SetNX(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	first, err := adapter.SetNX(ctx, "dedupe:abc", []byte("1"), 60)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := adapter.SetNX(ctx, "dedupe:abc", []byte("1"), 60)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("analytics:global", "1"))
	require.NoError(t, mr.Set("analytics:project:a", "1"))
	require.NoError(t, mr.Set("ratelimit:feedback:x", "1"))

	require.NoError(t, adapter.DeletePattern(ctx, "analytics:*"))

	assert.False(t, mr.Exists("analytics:global"))
	assert.False(t, mr.Exists("analytics:project:a"))
	assert.True(t, mr.Exists("ratelimit:feedback:x"))

	require.NoError(t, adapter.Delete(ctx, "ratelimit:feedback:x"))
	assert.False(t, mr.Exists("ratelimit:feedback:x"))
}
