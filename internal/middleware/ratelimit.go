package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether key may make another request now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects with 429 when l says no. Limiter errors let the request through.
func RateLimit(l Limiter, keyFunc func(*fiber.Ctx) string, logger *zap.Logger) fiber.Handler {
	if keyFunc == nil {
		keyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	return func(c *fiber.Ctx) error {
		ok, err := l.Allow(c.UserContext(), keyFunc(c))
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if !ok {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}

// IPRateLimiter is a token bucket per key held in process memory.
type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
		idle:  5 * time.Minute,
	}
}

func (l *IPRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	v, _ := l.visitors.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(l.rps, l.burst)})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = time.Now()
	vi.mu.Unlock()
	return vi.limiter.Allow(), nil
}

// Cleanup drops idle keys every interval until ctx ends.
func (l *IPRateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cutoff := time.Now().Add(-l.idle)
			l.visitors.Range(func(k, v any) bool {
				vi := v.(*visitor)
				vi.mu.Lock()
				stale := vi.lastSeen.Before(cutoff)
				vi.mu.Unlock()
				if stale {
					l.visitors.Delete(k)
				}
				return true
			})
		}
	}
}
