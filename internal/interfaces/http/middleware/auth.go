package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/pkg/jwt"
	"token-registry.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// ProducerKey is the context key for the token subject
	ProducerKey = "producer"
)

// TokenValidator validates producer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware requires a bearer producer token carrying scope
func AuthMiddleware(validator TokenValidator, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, "Invalid authorization format. Use: Bearer <token>")
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Warn(c.Request.Context(), "Rejected producer token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, jwt.ErrExpiredToken) {
				abortUnauthorized(c, "Token has expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    domainerrors.CodeUnauthorized,
				"message": "Token lacks scope " + scope,
			})
			return
		}

		c.Set(ProducerKey, claims.Subject)
		c.Next()
	}
}

// GetProducer returns the authenticated token subject
func GetProducer(c *gin.Context) (string, bool) {
	v, ok := c.Get(ProducerKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    domainerrors.CodeUnauthorized,
		"message": message,
	})
}
