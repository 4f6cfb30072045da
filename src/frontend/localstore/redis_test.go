package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, ttl), mr
}

func TestRedisStoresScopeAsHash(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Hour)

	require.NoError(t, r.Set(ctx, "s1", KeyCart, []byte(`[{"id":1}]`)))
	require.NoError(t, r.Set(ctx, "s1", KeyUser, []byte(`{"id":"3"}`)))

	assert.Equal(t, `[{"id":1}]`, mr.HGet("storage:s1", KeyCart))
	assert.Equal(t, `{"id":"3"}`, mr.HGet("storage:s1", KeyUser))

	v, err := r.Get(ctx, "s1", KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(v))

	_, err = r.Get(ctx, "s2", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisWriteRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Hour)

	require.NoError(t, r.Set(ctx, "s1", KeyCart, []byte(`[]`)))
	assert.Equal(t, time.Hour, mr.TTL("storage:s1"))

	mr.FastForward(50 * time.Minute)
	require.NoError(t, r.Set(ctx, "s1", KeyUser, []byte(`{}`)))
	assert.Equal(t, time.Hour, mr.TTL("storage:s1"))

	mr.FastForward(61 * time.Minute)
	_, err := r.Get(ctx, "s1", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound, "the whole scope expires together")
}

func TestRedisDefaultTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, 0)

	require.NoError(t, r.Set(ctx, "s1", KeyCart, []byte(`[]`)))
	assert.Equal(t, DefaultTTL, mr.TTL("storage:s1"))
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Hour)

	require.NoError(t, r.Set(ctx, "s1", KeyCart, []byte(`[]`)))
	require.NoError(t, r.Set(ctx, "s1", KeyUser, []byte(`{}`)))
	require.NoError(t, r.Delete(ctx, "s1", KeyUser))

	_, err := r.Get(ctx, "s1", KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, `[]`, mr.HGet("storage:s1", KeyCart), "sibling key survives")

	require.NoError(t, r.Delete(ctx, "missing", KeyCart))
}

func TestRedisOutageIsNotNotFound(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, time.Hour)
	mr.Close()

	_, err := r.Get(ctx, "s1", KeyCart)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "redis HGet cart")

	err = r.Set(ctx, "s1", KeyCart, []byte(`[]`))
	assert.Contains(t, err.Error(), "redis HSet cart")
}
