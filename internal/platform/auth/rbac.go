package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hasAnyRole(RolesFromContext(c.Request().Context()), roles) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// hasAnyRole is true when held includes a required role; admin holds every role.
func hasAnyRole(held, required []string) bool {
	for _, has := range held {
		if has == RoleAdmin {
			return true
		}
		for _, want := range required {
			if has == want {
				return true
			}
		}
	}
	return false
}
