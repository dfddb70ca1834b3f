package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/qaharvest/models"
)

// RateLimit returns per-identity (API key or IP) token-bucket middleware.
// The status server lives as long as one run, so entries are never evicted.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[identity]
		if !ok {
			l = rate.NewLimiter(rate.Limit(perSecond), burst)
			limiters[identity] = l
		}
		return l
	}

	return func(c *gin.Context) {
		// Prefer the API key set by Auth; fall back to IP.
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = key.(string)
		}

		if !getLimiter(identity).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
