package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) StatusCode() int { return e.code }

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/patients/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/patients/:id", "200"))
	if got != 3 {
		t.Fatalf("expected 3 requests on the route template, got %v", got)
	}
}

func TestMiddleware_StatusFromError(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/conflict", func(c echo.Context) error { return statusErr{code: http.StatusConflict} })
	e.GET("/missing", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, p := range []string{"/conflict", "/missing", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	cases := map[string]string{"/conflict": "409", "/missing": "404", "/boom": "500"}
	for route, code := range cases {
		if v := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", route, code)); v != 1 {
			t.Errorf("%s: expected one %s, got %v", route, code, v)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.Mutation("invoices", "updated")
	m.Mutation("invoices", "updated")
	m.ActivityFailure()
	m.FeedFailure("wards")
	m.BookingConflict("appointment_slot")
	m.CascadeUpdate("appointments")
	m.WebsocketClients(2)
	m.WebsocketClients(-1)

	if v := testutil.ToFloat64(m.mutations.WithLabelValues("invoices", "updated")); v != 2 {
		t.Errorf("mutations = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.activityFailures); v != 1 {
		t.Errorf("activity failures = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.wsClients); v != 1 {
		t.Errorf("ws clients = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.bookingConflicts.WithLabelValues("appointment_slot")); v != 1 {
		t.Errorf("booking conflicts = %v, want 1", v)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Mutation("x", "created")
	m.ActivityFailure()
	m.FeedFailure("x")
	m.WebsocketClients(1)
	m.BookingConflict("bed")
	m.CascadeUpdate("x")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.Mutation("patients", "created")

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `clinicdesk_document_mutations_total{collection="patients",op="created"} 1`) {
		t.Errorf("mutation counter missing from exposition:\n%s", rec.Body.String())
	}
}
