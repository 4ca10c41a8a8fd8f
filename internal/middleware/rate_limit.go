package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"flashsale/pkg/limiter"
	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// LocalRateLimit per-instance token bucket limiter keyed by client IP.
// It sheds load before any Redis round trip happens.
func LocalRateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		key := c.ClientIP()

		mu.Lock()
		lim, exists := limiters[key]
		if !exists {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[key] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Local rate limit exceeded")

			utils.ErrorResponse(c, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserRateLimit distributed sliding-window limiter keyed by the
// authenticated user, falling back to the client IP. Must run after Auth.
func UserRateLimit(l limiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = fmt.Sprintf("user:%d", userID)
		}

		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			// The limiter is advisory: if Redis is unreachable the
			// request proceeds and the admission gate decides.
			log.Warnf("Rate limiter unavailable for %s: %v", key, err)
			c.Next()
			return
		}

		if !allowed {
			log.WithFields(map[string]interface{}{
				"key":  key,
				"path": c.Request.URL.Path,
			}).Warn("User rate limit exceeded")

			c.Header("Retry-After", "1")
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Request too frequent, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
