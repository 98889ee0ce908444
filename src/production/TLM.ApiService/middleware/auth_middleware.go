package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/jwt"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
)

const claimsContextKey = "auth_claims"

// AuthMiddleware provides middleware functions for bearer-token
// authentication
type AuthMiddleware struct {
	jwtService *jwt.Service
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *jwt.Service) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// extractBearer gets a token from the Authorization header
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Optional verifies a bearer token when one is present and stores the
// claims in the request context. A missing or invalid token is not an
// error here: the request proceeds without an identity and read scoping
// falls back to the configured default visibility.
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.Request)
		if token != "" {
			if claims, err := m.jwtService.Verify(token); err == nil {
				c.Set(claimsContextKey, claims)
			}
		}
		c.Next()
	}
}

// Authenticate requires a valid bearer token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		claims, err := m.jwtService.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// GetClaimsFromGinContext retrieves verified claims from the Gin context
func GetClaimsFromGinContext(c *gin.Context) (*api_models.Claims, error) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, errors.New("claims not found in context")
	}
	claims, ok := value.(*api_models.Claims)
	if !ok {
		return nil, errors.New("invalid claims format in context")
	}
	return claims, nil
}
