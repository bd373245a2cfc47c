package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
)

func jsonContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

const bookingBody = `{"patientId":"p-1","providerId":"doc-1","date":"2026-03-02","time":"11:00","type":"Checkup"}`

func TestHandler_CreateThenConflict(t *testing.T) {
	h := NewHandler(newTestEnv().svc)

	c, rec := jsonContext(http.MethodPost, "/api/appointments", bookingBody)
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ProviderName != "Dr. Ruth Mensah" {
		t.Errorf("unexpected provider name %q", created.ProviderName)
	}

	c, _ = jsonContext(http.MethodPost, "/api/appointments", bookingBody)
	err := h.Create(c)
	if apierr.StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	if msg := apierr.Resolve(err).Message; msg != ErrSlotTaken.Error() {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestHandler_NamesAreNotBindable(t *testing.T) {
	h := NewHandler(newTestEnv().svc)
	c, rec := jsonContext(http.MethodPost, "/api/appointments", bookingBody)
	if err := h.Create(c); err != nil {
		t.Fatal(err)
	}
	var created Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	c, rec = jsonContext(http.MethodPatch, "/", `{"notes":"bring scans","patientName":"Forged"}`)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)
	if err := h.Update(c); err != nil {
		t.Fatal(err)
	}
	var updated Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.PatientName != "Amara Okafor" || updated.Notes != "bring scans" {
		t.Errorf("unexpected update result %+v", updated)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h := NewHandler(newTestEnv().svc)
	c, _ := jsonContext(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if status := apierr.StatusOf(h.Get(c)); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}
