package queue

import (
	"context"

	"mailedge/internal/envelope"
	"mailedge/internal/logger"
	"mailedge/internal/relay"
)

// ProxyQueue does not store anything: it relays each envelope synchronously
// and reports the relay's reply back to the submitter.
type ProxyQueue struct {
	relay    relay.Relay
	policies []Policy
	logger   logger.Logger
}

func NewProxyQueue(r relay.Relay, log logger.Logger, policies ...Policy) *ProxyQueue {
	return &ProxyQueue{relay: r, policies: policies, logger: log}
}

func (q *ProxyQueue) Handoff(ctx context.Context, env *envelope.Envelope) ([]Result, error) {
	if err := applyPolicies(ctx, q.policies, env); err != nil {
		return resultsFor(env, err), nil
	}

	err := q.relay.Attempt(ctx, env)
	if err != nil {
		q.logger.WarnwCtx(ctx, "Relay attempt failed", "error", err)
	}
	return resultsFor(env, err), nil
}
