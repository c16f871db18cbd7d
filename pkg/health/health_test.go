package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string {
	return s.name
}

func (s stubChecker) Check(ctx context.Context) error {
	return s.err
}

func TestCheckerRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		critical error
		optional error
		want     Status
	}{
		{name: "all healthy", want: StatusHealthy},
		{name: "optional down", optional: errors.New("cache down"), want: StatusDegraded},
		{name: "critical down", critical: errors.New("broker down"), want: StatusUnhealthy},
		{name: "both down", critical: errors.New("broker down"), optional: errors.New("cache down"), want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			r.Register(stubChecker{name: "kafka", err: tt.critical})
			r.RegisterOptional(stubChecker{name: "redis", err: tt.optional})

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, 2)
		})
	}
}

func TestCheckerRegistry_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewCheckerRegistry()
	r.Register(stubChecker{name: "kafka", err: errors.New("broker down")})

	router := gin.New()
	router.GET("/health", r.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var h Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, "broker down", h.Checks["kafka"].Message)
}

func TestKafkaChecker_NoBrokers(t *testing.T) {
	err := NewKafkaChecker(nil).Check(context.Background())
	assert.Error(t, err)
}
