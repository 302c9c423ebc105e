package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
)

// AuthMiddleware validates bearer access tokens issued by the auth service
type AuthMiddleware struct {
	BaseHandler
	auth services.AuthService
}

func NewAuthMiddleware(auth services.AuthService, opts HandlerOptions) *AuthMiddleware {
	return &AuthMiddleware{
		BaseHandler: NewBaseHandler(opts),
		auth:        auth,
	}
}

// RequireAuth rejects requests without a valid access token
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			m.writeError(c, http.StatusUnauthorized, err.Error(), nil)
			return
		}

		principal, err := m.principalFromToken(c, token)
		if err != nil {
			m.handleServiceError(c, err)
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.Next()
			return
		}
		if principal, err := m.principalFromToken(c, token); err == nil {
			setPrincipal(c, principal)
		}
		c.Next()
	}
}

// RequireRole checks the caller's role. Admins always pass.
func (m *AuthMiddleware) RequireRole(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := getPrincipal(c)
		if !ok {
			m.writeError(c, http.StatusUnauthorized, "authentication required", nil)
			return
		}

		if principal.IsAdmin() {
			c.Next()
			return
		}
		for _, role := range requiredRoles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		m.writeError(c, http.StatusForbidden, "Access denied", map[string]interface{}{
			"reason": fmt.Sprintf("requires role %v", requiredRoles),
		})
	}
}

func (m *AuthMiddleware) principalFromToken(c *gin.Context, token string) (services.Principal, error) {
	claims, err := m.auth.VerifyAccessToken(c.Request.Context(), token)
	if err != nil {
		return services.Principal{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return services.Principal{}, services.ErrInvalidToken
	}
	return services.Principal{UserID: userID, Role: claims.Role}, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("authorization header missing")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func setPrincipal(c *gin.Context, p services.Principal) {
	c.Set(userIDKey, p.UserID)
	c.Set(userRoleKey, p.Role)
}

// getPrincipal reads the principal stored by the auth middleware
func getPrincipal(c *gin.Context) (services.Principal, bool) {
	id, ok := c.Get(userIDKey)
	if !ok {
		return services.Principal{}, false
	}
	userID, ok := id.(uint)
	if !ok || userID == 0 {
		return services.Principal{}, false
	}
	role, _ := c.Get(userRoleKey)
	userRole, _ := role.(models.UserRole)
	return services.Principal{UserID: userID, Role: userRole}, true
}

// optionalPrincipal is nil for anonymous callers
func optionalPrincipal(c *gin.Context) *services.Principal {
	if p, ok := getPrincipal(c); ok {
		return &p
	}
	return nil
}

// requirePrincipal answers 401 when the route was reached without authentication
func (h *BaseHandler) requirePrincipal(c *gin.Context) (services.Principal, bool) {
	p, ok := getPrincipal(c)
	if !ok {
		h.writeError(c, http.StatusUnauthorized, "authentication required", nil)
	}
	return p, ok
}
