package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool keeps one token bucket per client key. Idle buckets are
// dropped after ttl.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func NewLimiterPool(requestsPerMinute, burst int) *LimiterPool {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimiterPool{
		m:     make(map[string]*limiterEntry),
		limit: rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}

	// 顺带清理长时间未使用的限流器
	cutoff := now.Add(-p.ttl)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}

	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).AllowN(p.now(), 1)
}

func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimit rejects requests over the per client budget with 429.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.Allow(c.ClientIP()) {
			Log(c).Warnf("rate limit exceeded for %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
