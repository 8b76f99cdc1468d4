package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
	"golang.org/x/time/rate"
)

// CodeRateLimited is the error code for throttled requests.
const CodeRateLimited apperr.Code = "RATE_LIMITED"

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter is a per-IP token bucket.
type RateLimiter struct {
	r        rate.Limit
	b        int
	limiters sync.Map
}

// NewRateLimiter creates a limiter allowing r requests per second with burst b.
// Idle entries are swept until ctx is done.
func NewRateLimiter(ctx context.Context, r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{r: r, b: b}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now.Add(-limiterIdleAfter))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.limiters.Range(func(k, v interface{}) bool {
		if v.(*ipLimiter).lastSeen.Load() < cutoff.UnixNano() {
			rl.limiters.Delete(k)
		}
		return true
	})
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	v, _ := rl.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(rl.r, rl.b)})
	il := v.(*ipLimiter)
	il.lastSeen.Store(time.Now().UnixNano())
	return il.limiter.Allow()
}

// Handler answers 429 once the client IP has exhausted its bucket.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperr.Body{
				Code: CodeRateLimited, Message: "rate limit exceeded",
			}})
			return
		}
		c.Next()
	}
}
