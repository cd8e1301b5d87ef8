package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject string, expiresAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", RequireAuth(secret), func(c *gin.Context) {
		c.JSON(200, gin.H{"user": currentUser(c)})
	})
	return r
}

func TestRequireAuthValidToken(t *testing.T) {
	r := newAuthedRouter("shh")
	token := signToken(t, "shh", "alice", time.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestRequireAuthMissingHeader(t *testing.T) {
	r := newAuthedRouter("shh")
	req := httptest.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	r := newAuthedRouter("shh")
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	r := newAuthedRouter("shh")
	token := signToken(t, "shh", "alice", time.Now().Add(-time.Hour))

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	r := newAuthedRouter("shh")
	token := signToken(t, "other-secret", "alice", time.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)
}
