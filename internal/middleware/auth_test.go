package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge-backend/internal/config"
	"clipforge-backend/internal/middleware"
)

const testSecret = "test-jwt-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(secret string) (*gin.Engine, *string) {
	cfg := &config.Config{SupabaseJWTSecret: secret}
	var seenUserID string

	router := gin.New()
	router.Use(middleware.AuthMiddleware(cfg))
	router.GET("/protected", func(c *gin.Context) {
		if v, ok := c.Get(middleware.UserIDKey); ok {
			seenUserID = v.(string)
		}
		c.Status(http.StatusOK)
	})
	return router, &seenUserID
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doAuth(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, seenUserID := authRouter(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "3f1c7a52-0000-4000-8000-000000000001",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doAuth(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3f1c7a52-0000-4000-8000-000000000001", *seenUserID)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router, _ := authRouter(testSecret)

	w := doAuth(router, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAuthMiddleware_BadFormat(t *testing.T) {
	router, _ := authRouter(testSecret)

	w := doAuth(router, "Token abc")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	router, _ := authRouter(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doAuth(router, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "signature")
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	router, _ := authRouter(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	w := doAuth(router, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	router, _ := authRouter(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doAuth(router, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "user id")
}
