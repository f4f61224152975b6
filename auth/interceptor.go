package auth

import (
	"net/http"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"
	RolesKey  = "roles"
	// OperatorRole grants the debug endpoints, which expose every chat.
	OperatorRole = "operator"
)

// Middleware rejects requests without a valid token and stores the caller in the gin context.
// Browsers cannot set headers on a websocket upgrade, so ?token= is accepted as well.
func Middleware(tokens Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			abort(c, "authorization token is missing")
			return
		}
		claims, err := tokens.ValidateToken(raw)
		if err != nil {
			abort(c, "invalid or expired token")
			return
		}
		c.Set(UserIDKey, chat.UserID(claims.UserID))
		c.Set(RolesKey, claims.Roles)
		c.Next()
	}
}

// RequireRole lets the request through only when the caller's token carries role.
// It must run after Middleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(RolesKey)
		granted, _ := roles.([]string)
		if !slices.Contains(granted, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, event.ErrorPayload{
				Kind:    errors.Kind(errors.ErrForbidden),
				Message: "the " + role + " role is required",
			})
			return
		}
		c.Next()
	}
}

// CallerID is the authenticated user of the request. Only valid behind Middleware.
func CallerID(c *gin.Context) chat.UserID {
	userID, _ := c.Get(UserIDKey)
	id, _ := userID.(chat.UserID)
	return id
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, event.ErrorPayload{
		Kind:    errors.Kind(errors.ErrUnauthenticated),
		Message: message,
	})
}
