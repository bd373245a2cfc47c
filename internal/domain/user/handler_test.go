package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

// newTestServer mounts the user routes behind a fixed caller role.
func newTestServer(role string) *echo.Echo {
	svc, _ := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = apierr.HTTPErrorHandler(zerolog.Nop())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "caller", "Caller", []string{role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(e.Group("/api"))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const userBody = `{"name":"Grace Adu","email":"grace@clinic.example","password":"s3cret-pass","role":"nurse"}`

func TestHandler_CRUD(t *testing.T) {
	e := newTestServer(auth.RoleAdmin)

	rec := do(e, http.MethodPost, "/api/admin/users", userBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password material leaked in response")
	}
	var created User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = do(e, http.MethodPatch, "/api/admin/users/"+created.ID, `{"department":"Ward B"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"department":"Ward B"`) {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodDelete, "/api/admin/users/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/admin/users/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandler_DuplicateEmailBody(t *testing.T) {
	e := newTestServer(auth.RoleAdmin)
	do(e, http.MethodPost, "/api/admin/users", userBody)

	rec := do(e, http.MethodPost, "/api/admin/users", userBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message == "" || len(body.Errors["email"]) != 1 {
		t.Errorf("unexpected error body %+v", body)
	}
}

func TestHandler_AdminOnly(t *testing.T) {
	e := newTestServer(auth.RoleDoctor)
	if rec := do(e, http.MethodGet, "/api/admin/users", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
