// Package relay delivers envelopes to a next-hop SMTP server.
package relay

import (
	"context"
	"fmt"

	"mailedge/internal/envelope"
	"mailedge/internal/reply"
)

type Relay interface {
	// Attempt delivers env once. A non-nil error that is an *Error carries
	// the SMTP reply that caused the failure.
	Attempt(ctx context.Context, env *envelope.Envelope) error
}

// Error is a delivery failure with the SMTP reply that explains it.
type Error struct {
	Reply reply.Reply
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay: %s: %v", e.Reply, e.Err)
	}
	return fmt.Sprintf("relay: %s", e.Reply)
}

func (e *Error) Unwrap() error {
	return e.Err
}
