package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/wifi-registry/internal/auth"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// OperatorKey is the context key for the authenticated operator's name
	OperatorKey ContextKey = "operator"

	// TokenIDKey is the context key for the presented token's ID
	TokenIDKey ContextKey = "token_id"
)

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Required returns a middleware that requires a valid operator token.
// Returns 401 Unauthorized if the token is missing or invalid.
func (m *AuthMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.extractAndValidateToken(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// Optional returns a middleware that records the operator if a valid token
// is present and continues either way
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := m.extractAndValidateToken(c); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// Guard returns Required when required is set, Optional otherwise
func (m *AuthMiddleware) Guard(required bool) gin.HandlerFunc {
	if required {
		return m.Required()
	}
	return m.Optional()
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(string(OperatorKey), claims.Operator)
	c.Set(string(TokenIDKey), claims.ID)
}

// extractAndValidateToken extracts the bearer token from the request and validates it
func (m *AuthMiddleware) extractAndValidateToken(c *gin.Context) (*auth.Claims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	tokenString := parts[1]
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return m.jwtService.ValidateToken(tokenString)
}

// GetOperator retrieves the authenticated operator from the context
func GetOperator(c *gin.Context) (string, error) {
	operator, exists := c.Get(string(OperatorKey))
	if !exists {
		return "", errors.New("operator not authenticated")
	}

	name, ok := operator.(string)
	if !ok {
		return "", errors.New("invalid operator format")
	}

	return name, nil
}

// OperatorOrAnonymous returns the operator name, or "anonymous" when the
// request carried no valid token
func OperatorOrAnonymous(c *gin.Context) string {
	if name, err := GetOperator(c); err == nil {
		return name
	}
	return "anonymous"
}
