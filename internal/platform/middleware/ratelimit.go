package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// LoginRateLimitConfig allows a burst of five sign-in attempts per client,
// then one every ten seconds.
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 5}
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

// take consumes a token if one is available; otherwise it returns the
// seconds until the next one.
func (b *tokenBucket) take(now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 1
	}
	return false, int(math.Ceil((1 - b.tokens) / b.refillRate))
}

type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	config  RateLimitConfig
	now     func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{buckets: make(map[string]*tokenBucket), config: cfg, now: time.Now}
}

func (l *rateLimiter) bucket(key string) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.config.RequestsPerSecond, l.config.BurstSize, l.now())
		l.buckets[key] = b
	}
	return b
}

// RateLimit limits requests per client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newRateLimiter(cfg))
}

func rateLimit(l *rateLimiter) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(l.config.RequestsPerSecond, 'f', -1, 64)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter := l.bucket(c.RealIP()).take(l.now())
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
