// Package queue hands finished envelopes off to durable storage or to a
// next-hop relay.
package queue

import (
	"context"
	"fmt"

	"mailedge/internal/envelope"
)

// Result is the outcome of a handoff for a single recipient. Err is nil when
// the envelope was accepted for that recipient.
type Result struct {
	Recipient string
	Err       error
}

type Queue interface {
	// Handoff blocks until env has been accepted or refused. It returns one
	// Result per recipient, or a single Result with an empty Recipient when
	// env has none. A non-nil error means the handoff itself broke.
	Handoff(ctx context.Context, env *envelope.Envelope) ([]Result, error)
}

// Error is a queueing failure: the envelope was not accepted.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue: %s: %v", e.Reason, e.Err)
	}
	return "queue: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Policy can refuse an envelope before it is queued by returning an *Error.
type Policy interface {
	Apply(ctx context.Context, env *envelope.Envelope) error
}

func resultsFor(env *envelope.Envelope, err error) []Result {
	if len(env.Recipients) == 0 {
		return []Result{{Err: err}}
	}
	results := make([]Result, len(env.Recipients))
	for i, rcpt := range env.Recipients {
		results[i] = Result{Recipient: rcpt, Err: err}
	}
	return results
}

func applyPolicies(ctx context.Context, policies []Policy, env *envelope.Envelope) error {
	for _, p := range policies {
		if err := p.Apply(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
