package reverselookup

import (
	"time"

	"github.com/mjl-/adns"
	"github.com/redis/go-redis/v9"

	"mailedge/internal/config"
	"mailedge/internal/logger"
)

// NewResolver assembles the lookup chain: cache, then circuit breaker, then
// DNS with a per-lookup timeout. rdb may be nil to disable caching.
func NewResolver(cfg *config.Config, rdb *redis.Client, log logger.Logger) Resolver {
	var r Resolver = WithTimeout(NewDNSResolver(&adns.Resolver{}), cfg.ReverseLookup.Timeout)

	if cfg.CircuitBreaker.Enabled {
		r = WithCircuitBreaker(r, cfg.CircuitBreaker)
	}

	if rdb != nil {
		ttl := time.Duration(cfg.ReverseLookup.CacheTTLSeconds) * time.Second
		r = NewCachingResolver(r, rdb, ttl, log)
	}

	return r
}
