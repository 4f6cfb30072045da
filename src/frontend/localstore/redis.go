package localstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

// DefaultTTL matches the session cookie lifetime; every write pushes expiry forward.
const DefaultTTL = 48 * time.Hour

// Redis stores each session scope as one hash: storage:<scope> -> {cart, user}.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, scope, key string) ([]byte, error) {
	val, err := r.rdb.HGet(ctx, hashKey(scope), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis HGet %s", key)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, scope, key string, value []byte) error {
	k := hashKey(scope)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, k, key, value)
	pipe.Expire(ctx, k, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "redis HSet %s", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, scope, key string) error {
	return errors.Wrapf(r.rdb.HDel(ctx, hashKey(scope), key).Err(), "redis HDel %s", key)
}

func hashKey(scope string) string {
	return "storage:" + scope
}
