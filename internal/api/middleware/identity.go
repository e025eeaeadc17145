package middleware

import (
	"net/http"
	"strings"

	"auction-bidding/internal/domain"

	"github.com/labstack/echo/v4"
)

// Headers injected by the gateway after it has authenticated the caller.
const (
	HeaderUserID    = "X-Auth-User-Id"
	HeaderUserName  = "X-Auth-User-Name"
	HeaderUserRoles = "X-Auth-User-Roles"
)

const identityKey = "identity"

// Identity stores the gateway-asserted caller on the echo context. Requests
// without a user id carry no identity.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			if userID := strings.TrimSpace(h.Get(HeaderUserID)); userID != "" {
				c.Set(identityKey, &domain.Identity{
					UserID:   userID,
					UserName: strings.TrimSpace(h.Get(HeaderUserName)),
					Roles:    splitRoles(h.Get(HeaderUserRoles)),
				})
			}
			return next(c)
		}
	}
}

// IdentityFrom returns nil for anonymous requests.
func IdentityFrom(c echo.Context) *domain.Identity {
	identity, _ := c.Get(identityKey).(*domain.Identity)
	return identity
}

func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := IdentityFrom(c)
			if identity == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "missing caller identity",
				})
			}
			if !identity.HasRole(role) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error":   "forbidden",
					"message": role + " required",
				})
			}
			return next(c)
		}
	}
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
