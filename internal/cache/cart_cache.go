// Package cache provides a Redis cache-aside layer for carts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

const (
	defaultBaseTTL   = 15 * time.Minute
	defaultMaxJitter = 5 * time.Minute
)

// RedisCartCache stores serialized carts under cart:<kind>:<id>.
type RedisCartCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

// NewRedisCartCache creates a cache with ttl plus up to five minutes of jitter.
func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = defaultBaseTTL
	}
	return &RedisCartCache{
		client:    client,
		baseTTL:   ttl,
		maxJitter: defaultMaxJitter,
	}
}

// Get returns the cached cart or ErrCacheMiss.
func (c *RedisCartCache) Get(ctx context.Context, owner model.Owner) (*model.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set stores cart with a jittered TTL.
func (c *RedisCartCache) Set(ctx context.Context, cart *model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := c.baseTTL
	if c.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(c.maxJitter)))
	}
	if err := c.client.Set(ctx, cacheKey(cart.Owner), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete drops the cached carts of the given owners.
func (c *RedisCartCache) Delete(ctx context.Context, owners ...model.Owner) error {
	if len(owners) == 0 {
		return nil
	}
	keys := make([]string, 0, len(owners))
	for _, o := range owners {
		keys = append(keys, cacheKey(o))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner model.Owner) string {
	return fmt.Sprintf("cart:%s", owner)
}

// cachedCartRepository decorates a CartRepository with read-through caching.
type cachedCartRepository struct {
	next    repository.CartRepository
	cache   *RedisCartCache
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCachedCartRepository wraps next so reads are served from Redis and writes invalidate the entry.
// Cache failures are logged and never fail the call.
func NewCachedCartRepository(next repository.CartRepository, cache *RedisCartCache, m *metrics.Metrics, logger zerolog.Logger) repository.CartRepository {
	return &cachedCartRepository{
		next:    next,
		cache:   cache,
		metrics: m,
		logger:  logger.With().Str("repository", "cart_cache").Logger(),
	}
}

func (r *cachedCartRepository) GetByOwner(ctx context.Context, owner model.Owner) (*model.Cart, error) {
	v, err, _ := r.group.Do(cacheKey(owner), func() (interface{}, error) {
		cart, err := r.cache.Get(ctx, owner)
		if err == nil {
			r.metrics.RecordCacheHit()
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("owner", owner.String()).Msg("cart cache read failed")
		}
		r.metrics.RecordCacheMiss()

		cart, err = r.next.GetByOwner(ctx, owner)
		if err != nil || cart == nil {
			return cart, err
		}

		if err := r.cache.Set(ctx, cart); err != nil {
			r.logger.Warn().Err(err).Str("owner", owner.String()).Msg("cart cache write failed")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	cart, _ := v.(*model.Cart)
	return cart, nil
}

func (r *cachedCartRepository) AddLine(ctx context.Context, owner model.Owner, line model.CartLine) (*model.Cart, error) {
	defer r.invalidate(ctx, owner)
	return r.next.AddLine(ctx, owner, line)
}

func (r *cachedCartRepository) SetLineQuantity(ctx context.Context, owner model.Owner, key model.LineKey, quantity int) (*model.Cart, error) {
	defer r.invalidate(ctx, owner)
	return r.next.SetLineQuantity(ctx, owner, key, quantity)
}

func (r *cachedCartRepository) RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error) {
	defer r.invalidate(ctx, owner)
	return r.next.RemoveLine(ctx, owner, key)
}

func (r *cachedCartRepository) MergeInto(ctx context.Context, from, to model.Owner) (*model.Cart, error) {
	defer r.invalidate(ctx, to)
	return r.next.MergeInto(ctx, from, to)
}

func (r *cachedCartRepository) Reassign(ctx context.Context, from, to model.Owner) error {
	defer r.invalidate(ctx, from, to)
	return r.next.Reassign(ctx, from, to)
}

func (r *cachedCartRepository) Delete(ctx context.Context, owner model.Owner) (bool, error) {
	defer r.invalidate(ctx, owner)
	return r.next.Delete(ctx, owner)
}

func (r *cachedCartRepository) invalidate(ctx context.Context, owners ...model.Owner) {
	if err := r.cache.Delete(context.WithoutCancel(ctx), owners...); err != nil {
		r.logger.Warn().Err(err).Msg("cart cache invalidation failed")
	}
}
