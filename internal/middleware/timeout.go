package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"flashsale/pkg/utils"
)

// Timeout bounds the request context. Handlers observe the deadline
// through c.Request.Context(); responses already in flight are not
// interrupted.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			utils.ErrorResponse(c, http.StatusRequestTimeout, "Request timeout")
			c.Abort()
		}
	}
}
