package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seatwise/seatwise/pkg/auth"
)

const OperatorKey = "operator"

// Auth validates the bearer token and stores the operator claims on the
// request context. 401 responses drive the frontend's logout redirect.
func Auth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OperatorKey, claims)
		c.Next()
	}
}

// Operator returns the validated claims set by Auth, if any.
func Operator(c *gin.Context) *auth.OperatorClaims {
	value, ok := c.Get(OperatorKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.OperatorClaims)
	return claims
}
