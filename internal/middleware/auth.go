package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"flashsale/internal/utils"
	pkgutils "flashsale/pkg/utils"
)

const (
	// AuthorizationHeader 认证头部名称
	AuthorizationHeader = "Authorization"
	// BearerPrefix Bearer前缀
	BearerPrefix = "Bearer "
	// UserIDKey 用户ID在上下文中的键
	UserIDKey = "user_id"
)

// Auth validates the Bearer token and stores the user ID in the context
func Auth(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			pkgutils.ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			pkgutils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if token == "" {
			pkgutils.ErrorResponse(c, http.StatusUnauthorized, "Missing token")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			pkgutils.ErrorResponse(c, http.StatusUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}

	userID, ok := v.(uint64)
	return userID, ok
}
