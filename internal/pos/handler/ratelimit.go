package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIPKey charges requests to the client IP.
func ClientIPKey(c *gin.Context) string { return c.ClientIP() }

// OperatorKey charges requests to the till operator named in X-Operator-ID,
// falling back to the client IP.
func OperatorKey(c *gin.Context) string {
	if op := c.GetHeader("X-Operator-ID"); op != "" {
		return "op:" + op
	}
	return c.ClientIP()
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware that enforces per-key token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Stale entries are cleaned every 5 minutes.
func RateLimiter(rps, burst int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIPKey
	}
	var mu sync.Mutex
	limiters := make(map[string]*keyLimiter)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for k, l := range limiters {
				if time.Since(l.lastSeen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		k := key(c)

		mu.Lock()
		l, ok := limiters[k]
		if !ok {
			l = &keyLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[k] = l
		}
		l.lastSeen = time.Now()
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
