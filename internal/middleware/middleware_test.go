package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsale/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestAuth(t *testing.T) {
	jwtManager := utils.NewJWTManager("test-secret", "flashsale", time.Hour)

	newRouter := func() *gin.Engine {
		r := gin.New()
		r.Use(Auth(jwtManager))
		r.GET("/me", func(c *gin.Context) {
			userID, ok := GetUserID(c)
			if !ok {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "no user"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"user_id": userID})
		})
		return r
	}

	t.Run("ValidToken", func(t *testing.T) {
		token, err := jwtManager.GenerateToken(42)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "42")
	})

	t.Run("MissingHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AuthorizationHeader, "Token abc")
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+"not-a-token")
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := utils.NewJWTManager("other-secret", "flashsale", time.Hour)
		token, err := other.GenerateToken(42)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(AuthorizationHeader, BearerPrefix+token)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLocalRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(LocalRateLimit(1, 2))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2], "burst exhausted")
	assert.Equal(t, http.StatusTooManyRequests, statuses[3])
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTimeoutPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/fast", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fast", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
