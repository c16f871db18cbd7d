package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mailedge/pkg/metrics"
)

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
	// Reject writes the response for a limited request. Nil answers 429 with
	// no body.
	Reject func(c *gin.Context)
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClient keeps one token bucket per client IP.
type PerClient struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

func NewPerClient(cfg Config) *PerClient {
	return &PerClient{
		cfg:      cfg,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

func (p *PerClient) Allow(clientIP string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[clientIP]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.limiters[clientIP] = l
	}
	l.lastSeen = p.now()
	return l.limiter.Allow()
}

// Cleanup drops limiters idle longer than MaxAge.
func (p *PerClient) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for ip, l := range p.limiters {
		if now.Sub(l.lastSeen) > p.cfg.MaxAge {
			delete(p.limiters, ip)
		}
	}
}

// Run calls Cleanup every CleanupInterval until ctx is done.
func (p *PerClient) Run(ctx context.Context) {
	interval := p.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup()
		}
	}
}

func (p *PerClient) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(p.cfg.RPS))
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		c.Header("X-RateLimit-Limit", limit)
		if !p.Allow(clientIP) {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("Retry-After", "1")
			if p.cfg.Reject != nil {
				p.cfg.Reject(c)
			} else {
				c.Status(http.StatusTooManyRequests)
			}
			c.Abort()
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
