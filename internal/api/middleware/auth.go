package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polaris-foundation/polaris-locations-api/pkg/jwt"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextScopes = "scopes"
)

// JWTAuth verifies the Authorization: Bearer <token> header and exposes the
// subject and scopes on the context.
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "invalid authorization header")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "token invalid or expired")
			c.Abort()
			return
		}

		scopes := make(map[string]bool)
		for _, s := range claims.Scopes() {
			scopes[s] = true
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextScopes, scopes)

		c.Next()
	}
}

// RequireScopes lets the request through when the token carries any of scopes.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextScopes); !exists {
			response.Unauthorized(c, 10002, "not authenticated")
			c.Abort()
			return
		}

		for _, s := range scopes {
			if HasScope(c, s) {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "insufficient scope")
		c.Abort()
	}
}

// HasScope reports whether the authenticated token carries scope.
func HasScope(c *gin.Context, scope string) bool {
	v, ok := c.Get(ContextScopes)
	if !ok {
		return false
	}
	scopes, ok := v.(map[string]bool)
	return ok && scopes[scope]
}
