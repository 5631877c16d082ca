package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	sessionIDContextKey    = "auth_session_id"
	sessionTokenContextKey = "auth_session_token"
)

// Middleware validates session tokens and stores the session id in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session required"})
			return
		}
		sessionID, err := s.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(sessionIDContextKey, sessionID)
		c.Set(sessionTokenContextKey, token)
		c.Next()
	}
}

// SessionIDFromContext retrieves the authenticated session id from the gin context.
func SessionIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

// SessionTokenFromContext retrieves the token captured by the middleware.
func SessionTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(sessionTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if hasBearer(authHeader) {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
