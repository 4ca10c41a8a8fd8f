package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS Cross-Origin Resource Sharing middleware. An empty origin list
// allows all origins.
func CORS(allowOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()

	if len(allowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
		config.AllowCredentials = true
	}

	config.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"Accept",
		"X-Real-IP",
		"X-Forwarded-For",
	}

	config.AllowMethods = []string{
		"GET",
		"POST",
		"PUT",
		"PATCH",
		"DELETE",
		"HEAD",
		"OPTIONS",
	}

	return cors.New(config)
}
