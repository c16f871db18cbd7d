package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int

	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}, func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func() error {
		calls++
		return errors.New("broker unavailable")
	}, nil)

	assert.EqualError(t, err, "broker unavailable")
	assert.Equal(t, 2, calls)
}

func TestDo_Permanent(t *testing.T) {
	calls := 0
	cause := errors.New("message too large")
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		return Permanent(cause)
	}, nil)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastPolicy(5), func() error {
		return errors.New("broker unavailable")
	}, nil)
	assert.Error(t, err)
}

func TestNextDelay(t *testing.T) {
	p := Policy{InitialInterval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, nextDelay(1, p))
	assert.Equal(t, 200*time.Millisecond, nextDelay(2, p))
	assert.Equal(t, 300*time.Millisecond, nextDelay(3, p))
}
