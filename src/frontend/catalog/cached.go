package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

const (
	productTTL = 10 * time.Minute
	listTTL    = 2 * time.Minute
)

type cachedService struct {
	next Service
	rdb  *redis.Client
	sf   singleflight.Group
	log  logrus.FieldLogger
	cb   *gobreaker.CircuitBreaker

	hitTotal  uint64
	missTotal uint64
}

// NewCached puts a redis read-through cache in front of next. Identical misses are
// coalesced, and a failing redis trips a breaker so reads fall through to next.
// A nil rdb returns next unchanged.
func NewCached(next Service, rdb *redis.Client, log logrus.FieldLogger) Service {
	if rdb == nil {
		return next
	}
	st := gobreaker.Settings{
		Name:        "CatalogCacheBreaker",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("CircuitBreaker state changed from %s to %s", from, to)
		},
	}
	c := &cachedService{
		next: next,
		rdb:  rdb,
		log:  log,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
	c.registerMetrics(otel.GetMeterProvider().Meter("frontend.catalog"))
	return c
}

func (c *cachedService) registerMetrics(meter metric.Meter) {
	_, err := meter.Int64ObservableCounter(
		"catalog_cache_hit_total",
		metric.WithUnit("{reads}"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(atomic.LoadUint64(&c.hitTotal)))
			return nil
		}),
	)
	if err != nil {
		c.log.Warnf("failed to register cache hit metric: %v", err)
	}
	_, err = meter.Int64ObservableCounter(
		"catalog_cache_miss_total",
		metric.WithUnit("{reads}"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			obs.Observe(int64(atomic.LoadUint64(&c.missTotal)))
			return nil
		}),
	)
	if err != nil {
		c.log.Warnf("failed to register cache miss metric: %v", err)
	}
}

func (c *cachedService) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := c.readThrough(ctx, "catalog:products", listTTL, &out, func() (interface{}, error) {
		return c.next.ListProducts(ctx)
	})
	return out, err
}

func (c *cachedService) GetProduct(ctx context.Context, id model.ID) (*model.Product, error) {
	var out *model.Product
	err := c.readThrough(ctx, fmt.Sprintf("catalog:product:%s", id), productTTL, &out, func() (interface{}, error) {
		return c.next.GetProduct(ctx, id)
	})
	return out, err
}

func (c *cachedService) ListCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.readThrough(ctx, "catalog:categories", listTTL, &out, func() (interface{}, error) {
		return c.next.ListCategories(ctx)
	})
	return out, err
}

// readThrough decodes the cached value at key into dst, or loads it with load, writes it
// back with a jittered ttl and decodes the loaded value into dst.
func (c *cachedService) readThrough(ctx context.Context, key string, ttl time.Duration, dst interface{}, load func() (interface{}, error)) error {
	val, err := c.cb.Execute(func() (interface{}, error) {
		res, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		c.log.Warnf("[catalog cache] breaker open or redis error on %s: %v", key, err)
	}
	if b, ok := val.([]byte); ok && b != nil {
		uerr := json.Unmarshal(b, dst)
		if uerr == nil {
			atomic.AddUint64(&c.hitTotal, 1)
			return nil
		}
		c.log.Errorf("[catalog cache] failed to unmarshal %s: %v", key, uerr)
	}
	atomic.AddUint64(&c.missTotal, 1)

	res, err, shared := c.sf.Do(key, func() (interface{}, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		jittered := ttl + time.Duration(rand.Intn(60))*time.Second
		if _, err := c.cb.Execute(func() (interface{}, error) {
			return nil, c.rdb.Set(ctx, key, data, jittered).Err()
		}); err != nil {
			c.log.Warnf("[catalog cache] failed to write %s: %v", key, err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if shared {
		c.log.Debugf("[catalog cache] shared load for %s", key)
	}
	return json.Unmarshal(res.([]byte), dst)
}
