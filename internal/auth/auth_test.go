package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c))
	})
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	r := newProtectedRouter(secret)

	t.Run("Valid admin token", func(t *testing.T) {
		token, err := IssueAdminToken(secret, "ops@example.com", time.Hour)
		require.NoError(t, err)

		w := call(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ops@example.com", w.Body.String())
	})

	t.Run("Missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	})

	t.Run("Malformed header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(r, "Token abc").Code)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := IssueAdminToken([]byte("other"), "x", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token).Code)
	})

	t.Run("Expired token", func(t *testing.T) {
		token, err := IssueAdminToken(secret, "x", -time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token).Code)
	})

	t.Run("Token without admin role", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "viewer",
			"role": "viewer",
			"exp":  time.Now().Add(time.Hour).Unix(),
		}).SignedString(secret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+token).Code)
	})

	t.Run("Unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub":  "x",
			"role": "admin",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token).Code)
	})
}
