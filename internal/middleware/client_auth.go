package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arenabeat/resultgate/pkg/auth"
)

// ClientAuthMiddleware guards the streaming endpoint with bearer auth when
// a validator is configured. A nil validator leaves the endpoint open;
// probe and discovery endpoints never pass through here.
func ClientAuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}
		claims, err := validateBearer(validator, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("clientClaims", claims)
		c.Next()
	}
}

// GetClientClaims returns claims set by ClientAuthMiddleware, if any.
func GetClientClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get("clientClaims")
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func validateBearer(validator auth.Validator, authHeader string) (*auth.Claims, error) {
	if strings.TrimSpace(authHeader) == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("invalid Authorization format")
	}
	return validator.Validate(parts[1])
}
