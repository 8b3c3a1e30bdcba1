package middleware

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fatflowers/gachapon/pkg/response"
)

const limiterIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limit rate.Limit
	burst int
	clk   clock.Clock

	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

func NewRateLimiter(perMinute, burst int, clk clock.Clock) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		clk:      clk,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether key may make one more request now.
func (r *RateLimiter) Allow(key string) bool {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.swept) > limiterIdle {
		for k, v := range r.visitors {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(r.visitors, k)
			}
		}
		r.swept = now
	}
	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware limits per authenticated user, or per client IP before Session.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := Identity(c); id != nil {
			key = "user:" + id.UserID
		}
		if !r.Allow(key) {
			Abort(c, response.APIResponseCodeRateLimited, nil)
			return
		}
		c.Next()
	}
}
