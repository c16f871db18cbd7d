package reverselookup

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"mailedge/internal/logger"
	"mailedge/pkg/metrics"
)

// Enricher starts one background PTR lookup per submission.
type Enricher struct {
	resolver Resolver
	logger   logger.Logger
}

// NewEnricher returns an enricher whose tasks never resolve when resolver is
// nil.
func NewEnricher(resolver Resolver, log logger.Logger) *Enricher {
	return &Enricher{resolver: resolver, logger: log}
}

// Task is a running or finished lookup. All methods are safe for concurrent
// use and none of them block.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	host   atomic.Pointer[string]
}

func finishedTask() *Task {
	t := &Task{cancel: func() {}, done: make(chan struct{})}
	close(t.done)
	return t
}

// Start begins resolving ip and returns immediately. Addresses that are not
// IPs yield a task that is already finished without a host.
func (e *Enricher) Start(ctx context.Context, ip string) *Task {
	if e == nil || e.resolver == nil || net.ParseIP(ip) == nil {
		return finishedTask()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				e.logger.ErrorwCtx(ctx, "Reverse lookup panicked", "ip", ip, "panic", r)
				metrics.ReverseLookupsTotal.WithLabelValues("error").Inc()
			}
		}()

		start := time.Now()
		host, err := e.resolver.LookupPTR(ctx, ip)
		metrics.ObserveReverseLookupDuration(time.Since(start))

		switch {
		case err == nil:
			t.host.Store(&host)
			metrics.ReverseLookupsTotal.WithLabelValues("found").Inc()
		case errors.Is(err, ErrNoRecord):
			metrics.ReverseLookupsTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, context.Canceled):
			metrics.ReverseLookupsTotal.WithLabelValues("canceled").Inc()
		default:
			metrics.ReverseLookupsTotal.WithLabelValues("error").Inc()
			e.logger.DebugwCtx(ctx, "Reverse lookup failed", "ip", ip, "error", err)
		}
	}()

	return t
}

// Host returns the resolved name if the lookup has already completed
// successfully.
func (t *Task) Host() (string, bool) {
	select {
	case <-t.done:
	default:
		return "", false
	}
	if h := t.host.Load(); h != nil {
		return *h, true
	}
	return "", false
}

// Stop cancels the lookup if it is still running. It does not wait.
func (t *Task) Stop() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}
