// README: Firebase auth middleware: resolves the bearer token to a caller uid and role.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leafline/internal/infra"
	"leafline/internal/types"
)

const (
	ctxKeyUID  = "auth_uid"
	ctxKeyRole = "auth_role"
)

// Auth verifies the Authorization bearer token and stores the caller's uid
// and role claim on the request context. Requests without a valid token are
// rejected with 401.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role := string(types.RoleCustomer)
		if claim, ok := token.Claims["role"].(string); ok && claim != "" {
			role = claim
		}
		c.Set(ctxKeyUID, token.UID)
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxKeyRole)
}

// CallerActor assembles the resolved identity for orchestrator commands.
func CallerActor(c *gin.Context) types.Actor {
	return types.Actor{ID: types.ID(CallerUID(c)), Role: types.Role(CallerRole(c))}
}
