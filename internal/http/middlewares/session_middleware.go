package middlewares

import (
	"context"
	"net/http"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// SessionResolver is the slice of the auth service this middleware needs.
// Keep this small interface so tests can fake it easily.
type SessionResolver interface {
	UserFromSessionToken(ctx context.Context, token string) (user.User, bool, error)
}

const sessionCookieName = "session_token"

type SessionMiddleware struct {
	sessions SessionResolver
}

func NewSessionMiddleware(sessions SessionResolver) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireSession resolves the session cookie on every request, never from a
// cache, so a revoked token stops working immediately.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(sessionCookieName)

		if err != nil || raw == "" {
			abortNoSession(c)
			return
		}

		u, found, err := m.sessions.UserFromSessionToken(c.Request.Context(), raw)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Could not resolve session",
				},
			})
			return
		}

		if !found {
			abortNoSession(c)
			return
		}

		c.Set(string(CtxUserID), u.ID)
		c.Set(string(CtxEmail), u.Email)

		c.Next()
	}
}

func abortNoSession(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":    "no_session",
			"message": "No active session",
		},
	})
}
