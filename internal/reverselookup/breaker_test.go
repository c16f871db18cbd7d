package reverselookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"mailedge/internal/config"
)

func TestWithCircuitBreaker_OpensOnErrors(t *testing.T) {
	calls := 0
	r := WithCircuitBreaker(countingResolver("", errors.New("servfail"), &calls), config.CircuitBreakerConfig{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		Timeout:      time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, _ = r.LookupPTR(context.Background(), "192.0.2.1")
	}

	_, err := r.LookupPTR(context.Background(), "192.0.2.1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestWithCircuitBreaker_NoRecordIsSuccess(t *testing.T) {
	calls := 0
	r := WithCircuitBreaker(countingResolver("", ErrNoRecord, &calls), config.CircuitBreakerConfig{
		Enabled:     true,
		MinRequests: 2,
	})

	for i := 0; i < 5; i++ {
		_, err := r.LookupPTR(context.Background(), "192.0.2.1")
		assert.ErrorIs(t, err, ErrNoRecord)
	}
	assert.Equal(t, 5, calls)
}
