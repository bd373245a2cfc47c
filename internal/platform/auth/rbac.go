package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Clinic staff roles.
const (
	RoleAdmin         = "admin"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
	RoleReceptionist  = "receptionist"
	RoleLabTechnician = "lab_technician"
	RolePharmacist    = "pharmacist"
	RoleAccountant    = "accountant"
)

// AllRoles in display order.
var AllRoles = []string{
	RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist,
	RoleLabTechnician, RolePharmacist, RoleAccountant,
}

// RequireRole allows the request when the caller has any of roles. Admins
// pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, has := range userRoles {
				if has == RoleAdmin {
					return next(c)
				}
				for _, required := range roles {
					if has == required {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
