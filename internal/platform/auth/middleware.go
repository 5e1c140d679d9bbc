// Package auth verifies the access tokens the hosted auth service issues.
// Tokens are HS256-signed with the project's JWT secret; the middleware
// validates them and exposes typed claims to handlers.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "auth_claims"

// Claims are the token fields this service cares about.
type Claims struct {
	jwt.RegisteredClaims
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	AppMetadata map[string]interface{} `json:"app_metadata"`
}

// AppRole returns the application role: app_metadata.role when present,
// otherwise the token's base role.
func (c *Claims) AppRole() string {
	if c.AppMetadata != nil {
		if role, ok := c.AppMetadata["role"].(string); ok && role != "" {
			return role
		}
	}
	return c.Role
}

// FromContext returns the verified claims, or nil outside the middleware.
func FromContext(c echo.Context) *Claims {
	claims, _ := c.Get(claimsContextKey).(*Claims)
	return claims
}

// Middleware validates the Bearer token on every request.
func Middleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// DevMiddleware grants every request an admin identity. Development only;
// config refuses to start production without a JWT secret.
func DevMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(claimsContextKey, &Claims{
				Email:       "dev@localhost",
				Role:        "authenticated",
				AppMetadata: map[string]interface{}{"role": "admin"},
			})
			return next(c)
		}
	}
}

// RequireRole guards a route group to the listed application roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := FromContext(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !allowed[claims.AppRole()] {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
