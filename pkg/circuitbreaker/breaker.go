package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"mailedge/pkg/metrics"
)

type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
	OnStateChange    func(name string, from, to gobreaker.State)
	// IsSuccessful reports whether err should count as a success. Nil means
	// only a nil error is a success.
	IsSuccessful func(err error) bool
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      3,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func New(cfg Config) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= threshold
		},
		IsSuccessful: cfg.IsSuccessful,
	}

	// Metrics are updated before any caller-supplied handler runs.
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		setStateMetric(name, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	setStateMetric(cfg.Name, cb.State())

	return &Breaker{cb: cb}
}

// Execute runs fn through the breaker. A cancelled context is returned
// without counting against the breaker.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	state := b.cb.State().String()
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), state).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func setStateMetric(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}
