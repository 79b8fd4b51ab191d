package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// JWTMiddleware validates bearer tokens and injects the session.
func JWTMiddleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		session, err := tokens.ParseSession(tokenString)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), session))
		c.Set(string(sessionKey), session)

		c.Next()
	}
}

// RequireUser rejects sessions that do not belong to a registered user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s, ok := SessionFromContext(c.Request.Context()); !ok || !s.IsUser() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user session required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects non-admin sessions.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s, ok := SessionFromContext(c.Request.Context()); !ok || !s.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin session required"})
			return
		}
		c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
