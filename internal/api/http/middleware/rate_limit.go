package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
	sweptAt time.Time
	now     func() time.Time
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return rl
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit == 0 {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	rl.evictIdle(now)
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// evictIdle drops buckets not used for limiterIdleTTL. Caller holds mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.sweptAt) < limiterIdleTTL {
		return
	}
	rl.sweptAt = now
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects clients over their budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			logger.New(c.Request.Context()).LogWarnf("rate_limit", "client_ip=%s path=%s rejected", ip, c.Request.URL.Path)
			if rl.limit > 0 {
				retry := time.Duration(float64(time.Second) / float64(rl.limit))
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many demo requests. Please try again later."})
			return
		}
		c.Next()
	}
}
