package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedis starts an in-process Redis and returns a connected RedisCache.
func setupRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc, mr
}

func TestPing(t *testing.T) {
	rc, _ := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestSetGet_Roundtrip(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second)
	require.NoError(t, err)

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_NotFound(t *testing.T) {
	rc, _ := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestSet_TTLExpiry(t *testing.T) {
	rc, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "expiring", []byte("v"), 5*time.Second))

	mr.FastForward(6 * time.Second)

	_, found, err := rc.Get(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "to-delete", []byte("v"), time.Minute))
	require.NoError(t, rc.Delete(ctx, "to-delete"))

	_, found, err := rc.Get(ctx, "to-delete")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_MissingKeyIsNoop(t *testing.T) {
	rc, _ := setupRedis(t)
	assert.NoError(t, rc.Delete(context.Background(), "never-existed"))
}

func TestIncrWithExpiry_Counts(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := rc.IncrWithExpiry(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIncrWithExpiry_ExpiresAndRestarts(t *testing.T) {
	rc, mr := setupRedis(t)
	ctx := context.Background()

	_, err := rc.IncrWithExpiry(ctx, "counter", 30*time.Second)
	require.NoError(t, err)
	_, err = rc.IncrWithExpiry(ctx, "counter", 30*time.Second)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	got, err := rc.IncrWithExpiry(ctx, "counter", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestVerificationKey(t *testing.T) {
	assert.Equal(t, "verify:abc123", cache.VerificationKey("abc123"))
}

func TestRateLimitKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t,
		"ratelimit:11111111-2222-3333-4444-555555555555:1700000000",
		cache.RateLimitKey(id, 1700000000))
}
