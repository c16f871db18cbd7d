package reverselookup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"mailedge/internal/constants"
	"mailedge/internal/logger"
	"mailedge/pkg/metrics"
)

var errCacheMiss = errors.New("cache miss")

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errCacheMiss
	}
	return val, err
}

func (s redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// CachingResolver keeps positive PTR answers in Redis. Negative answers and
// lookup errors are not cached.
type CachingResolver struct {
	next   Resolver
	store  cacheStore
	ttl    time.Duration
	logger logger.Logger
}

func NewCachingResolver(next Resolver, client *redis.Client, ttl time.Duration, log logger.Logger) *CachingResolver {
	return newCachingResolver(next, redisStore{client: client}, ttl, log)
}

func newCachingResolver(next Resolver, store cacheStore, ttl time.Duration, log logger.Logger) *CachingResolver {
	if ttl <= 0 {
		ttl = constants.DefaultPTRTTL
	}
	return &CachingResolver{next: next, store: store, ttl: ttl, logger: log}
}

func (r *CachingResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	key := constants.CacheKeyPrefixPTR + ip

	host, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		metrics.ReverseLookupCacheTotal.WithLabelValues("hit").Inc()
		return host, nil
	case errors.Is(err, errCacheMiss):
		metrics.ReverseLookupCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.ReverseLookupCacheTotal.WithLabelValues("error").Inc()
		r.logger.WarnwCtx(ctx, "PTR cache read failed", "ip", ip, "error", err)
	}

	host, err = r.next.LookupPTR(ctx, ip)
	if err != nil {
		return "", err
	}

	if err := r.store.Set(ctx, key, host, r.ttl); err != nil {
		r.logger.WarnwCtx(ctx, "PTR cache write failed", "ip", ip, "error", err)
	}
	return host, nil
}
