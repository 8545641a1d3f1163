package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

// AdminMiddleware guards the pipeline trigger routes with a shared bearer
// token. There are no per-user accounts on this service; the only caller is
// the operator or the scheduler's own HTTP probes.
type AdminMiddleware struct {
	log   *logger.Logger
	token string
}

func NewAdminMiddleware(log *logger.Logger, token string) *AdminMiddleware {
	return &AdminMiddleware{log: log.With("Middleware", "AdminMiddleware"), token: token}
}

func (am *AdminMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin token not configured"})
			return
		}
		provided := extractBearer(c)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(am.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}
