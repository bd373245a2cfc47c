package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(t *testing.T, roles []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	if err := runWithRoles(t, []string{RoleDoctor}, RoleDoctor, RoleNurse); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	err := runWithRoles(t, []string{RoleAccountant}, RoleDoctor, RoleNurse)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminAlwaysAllowed(t *testing.T) {
	if err := runWithRoles(t, []string{RoleAdmin}, RoleLabTechnician); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	if err := runWithRoles(t, nil, RoleDoctor); err == nil {
		t.Error("expected error with no roles in context")
	}
}
