package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// Recovery panic recovery middleware
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(map[string]interface{}{
			"error":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"ip":     c.ClientIP(),
			"stack":  string(debug.Stack()),
		}).Error("Panic recovered")

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	})
}
