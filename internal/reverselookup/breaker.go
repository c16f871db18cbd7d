package reverselookup

import (
	"context"
	"errors"

	"mailedge/internal/config"
	"mailedge/pkg/circuitbreaker"
)

type breakerResolver struct {
	next    Resolver
	breaker *circuitbreaker.Breaker
}

// WithCircuitBreaker stops calling next while the breaker is open. A missing
// PTR record counts as a successful lookup.
func WithCircuitBreaker(next Resolver, cfg config.CircuitBreakerConfig) Resolver {
	cbCfg := circuitbreaker.DefaultConfig("reverse_lookup")
	if cfg.MaxRequests > 0 {
		cbCfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbCfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbCfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbCfg.FailureThreshold = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbCfg.MinRequests = cfg.MinRequests
	}
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNoRecord) || errors.Is(err, context.Canceled)
	}

	return &breakerResolver{next: next, breaker: circuitbreaker.New(cbCfg)}
}

func (r *breakerResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	return circuitbreaker.Execute(ctx, r.breaker, func(ctx context.Context) (string, error) {
		return r.next.LookupPTR(ctx, ip)
	})
}
