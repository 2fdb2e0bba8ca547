package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/peladahub/peladahub/internal/auth"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

const (
	CtxClaimsKey     = "authClaims"
	CtxUserIDKey     = "userID"
	CtxSessionIDKey  = "sessionID"
	CtxMembershipKey = "membership"
	CtxRoleKey       = "role"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}
		c.Set(CtxMembershipKey, claims.Membership)
		c.Set(CtxRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole restricts a route to users carrying the given role claim.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if got, _ := v.(string); got != role {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireMembership restricts a route to users holding one of the listed
// membership kinds. Organizers pass regardless of membership.
func RequireMembership(allowed ...models.Membership) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, ok := c.Get(CtxRoleKey); ok {
			if got, _ := role.(string); got == models.RoleOrganizer {
				c.Next()
				return
			}
		}

		v, ok := c.Get(CtxMembershipKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		membership, _ := v.(models.Membership)
		for _, m := range allowed {
			if membership == m {
				c.Next()
				return
			}
		}
		response.Error(c, errors.ErrForbidden)
		c.Abort()
	}
}
