package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ContextActorKey is the gin context key holding the authenticated actor
const ContextActorKey = "actor"

// ActorFrom returns the authenticated actor identity for a request
func ActorFrom(c *gin.Context) string {
	if actor := c.GetString(ContextActorKey); actor != "" {
		return actor
	}
	return "unknown"
}

// Middleware validates a Bearer JWT and stores the subject claim as the
// actor identity. With an empty secret the middleware runs in development
// mode and trusts the X-Actor header instead.
func Middleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			if actor := c.GetHeader("X-Actor"); actor != "" {
				c.Set(ContextActorKey, actor)
			}
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn("rejected request with invalid token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}

		c.Set(ContextActorKey, subject)
		c.Next()
	}
}
