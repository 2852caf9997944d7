package auth

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// Roles carried in the clinician token.
const (
	// RoleClinician may view patient data.
	RoleClinician = "clinician"
	// RoleAdmin passes every role check.
	RoleAdmin = "admin"
)

// HasRole reports whether cl holds role, or is an admin.
func HasRole(cl Clinician, role string) bool {
	return slices.Contains(cl.Roles, role) || slices.Contains(cl.Roles, RoleAdmin)
}

// RequireRole rejects requests whose clinician holds none of roles. A
// request with no clinician at all is refused as well.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl := ClinicianFromContext(c.Request().Context())
			for _, role := range roles {
				if HasRole(cl, role) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "your account is not permitted to view patient data")
		}
	}
}
