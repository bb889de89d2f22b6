package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skillcore/skillcore-backend/internal/response"
)

// RateLimiter is a per-IP token bucket. Buckets refill in whole
// intervals; unused capacity never exceeds the configured rate.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration
}

type bucket struct {
	remaining  int
	lastRefill time.Time
}

// NewRateLimiter creates a RateLimiter allowing rate requests per
// interval per client IP. A background sweep drops idle buckets.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.sweep()
		}
	}()

	return rl
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		rl.buckets[ip] = &bucket{remaining: rl.rate - 1, lastRefill: time.Now()}
		return true
	}

	if elapsed := time.Since(b.lastRefill); elapsed >= rl.interval {
		b.remaining += int(elapsed/rl.interval) * rl.rate
		if b.remaining > rl.rate {
			b.remaining = rl.rate
		}
		b.lastRefill = time.Now()
	}

	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if time.Since(b.lastRefill) > 3*time.Minute {
			delete(rl.buckets, ip)
		}
	}
}
