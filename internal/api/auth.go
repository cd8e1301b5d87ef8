package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// currentUserKey is the gin context key RequireAuth stores the
// validated JWT subject under.
const currentUserKey = "tarsy.current_user"

// claims is the minimal registered-claims shape this runtime expects;
// spec.md §6.2 only requires the JWT's `sub` as the user id, so unlike
// haasonsaas-nexus/internal/auth/jwt.go's Claims (which also carries
// Email/Name for account issuance) there is nothing runtime-specific
// to add here -- this service only validates tokens, it never issues
// them.
type claims struct {
	jwt.RegisteredClaims
}

// RequireAuth is gin middleware validating the "Authorization: Bearer
// <JWT>" header required on every endpoint (spec.md §6.2). The
// signing secret is the process's SECRET_KEY (internal/config),
// grounded on haasonsaas-nexus/internal/auth/jwt.go's
// ParseWithClaims/signing-method-assertion pattern, adapted from a
// standalone issuing service into inline gin middleware since this
// runtime is a pure verifier.
func RequireAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			forbiddenAuth(c, "missing Authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			forbiddenAuth(c, "Authorization header must be a Bearer token")
			return
		}

		var cl claims
		token, err := jwt.ParseWithClaims(parts[1], &cl, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid || cl.Subject == "" {
			forbiddenAuth(c, "invalid or expired token")
			return
		}

		c.Set(currentUserKey, cl.Subject)
		c.Next()
	}
}

func forbiddenAuth(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// currentUser returns the authenticated user id RequireAuth stored on
// the request context. Only ever called from a handler downstream of
// RequireAuth, so the cast always succeeds.
func currentUser(c *gin.Context) string {
	return c.GetString(currentUserKey)
}
