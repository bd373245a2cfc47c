package laborder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
)

type patients map[string]string

func (p patients) DisplayName(_ context.Context, id string) (string, error) {
	if name, ok := p[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%s: %w", id, docstore.ErrNotFound)
}

func newTestService() *Service {
	return NewService(NewDocRepo(memory.New()), patients{"p-1": "Amara Okafor"}, activity.Nop{})
}

func doctorCtx() context.Context {
	return auth.WithIdentity(context.Background(), "doc-1", "Dr. Ruth Mensah", []string{auth.RoleDoctor})
}

func cbcOrder() *CreateRequest {
	return &CreateRequest{
		PatientID: "p-1",
		Tests: []Test{
			{Code: "CBC", Name: "Complete Blood Count", Price: 25},
			{Code: "HBA1C", Name: "Hemoglobin A1c", Price: 40},
		},
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	o, err := svc.Create(doctorCtx(), cbcOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.OrderedByID != "doc-1" || o.OrderedByName != "Dr. Ruth Mensah" {
		t.Errorf("ordering clinician not taken from session: %+v", o)
	}
	if o.PatientName != "Amara Okafor" || o.Priority != PriorityRoutine || o.Status != StatusPendingSample {
		t.Errorf("unexpected defaults %+v", o)
	}
	if len(o.Tests) != 2 || o.Total() != 65 {
		t.Errorf("tests not stored: %+v", o.Tests)
	}
	if o.Results == nil {
		t.Error("results must encode as an empty array")
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := newTestService()
	tests := []struct {
		name  string
		mut   func(*CreateRequest)
		field string
	}{
		{"no tests", func(r *CreateRequest) { r.Tests = nil }, "tests"},
		{"duplicate code", func(r *CreateRequest) { r.Tests[1].Code = "CBC" }, "tests[1].code"},
		{"negative price", func(r *CreateRequest) { r.Tests[0].Price = -5 }, "tests[0].price"},
		{"unknown patient", func(r *CreateRequest) { r.PatientID = "ghost" }, "patientId"},
		{"priority", func(r *CreateRequest) { r.Priority = "Whenever" }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := cbcOrder()
			tt.mut(req)
			_, err := svc.Create(doctorCtx(), req)
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *apierr.Error, got %v", err)
			}
			if len(apiErr.Errors[tt.field]) == 0 {
				t.Errorf("expected error on %s, got %v", tt.field, apiErr.Errors)
			}
		})
	}
}

func TestService_RecordResults(t *testing.T) {
	svc := newTestService()
	ctx := doctorCtx()
	o, _ := svc.Create(ctx, cbcOrder())

	got, err := svc.RecordResults(ctx, o.ID, &ResultsRequest{Results: []Result{
		{TestCode: "HBA1C", Value: "6.9", Unit: "%", ReferenceRange: "4.0-5.6", Flag: "High"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusResultsReady {
		t.Errorf("expected Results Ready, got %q", got.Status)
	}
	if len(got.Results) != 1 || got.Results[0].Flag != "High" || got.Results[0].ReferenceRange != "4.0-5.6" {
		t.Errorf("unexpected results %+v", got.Results)
	}

	_, err = svc.RecordResults(ctx, o.ID, &ResultsRequest{Results: []Result{{TestCode: "LIPID", Value: "1"}}})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || len(apiErr.Errors["results[0].testCode"]) == 0 {
		t.Errorf("expected unknown test error, got %v", err)
	}
}

func TestService_CancelledOrderRejectsResults(t *testing.T) {
	svc := newTestService()
	ctx := doctorCtx()
	o, _ := svc.Create(ctx, cbcOrder())
	cancelled := StatusCancelled
	if _, err := svc.Update(ctx, o.ID, &UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.RecordResults(ctx, o.ID, &ResultsRequest{Results: []Result{{TestCode: "CBC", Value: "ok"}}})
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	processing := StatusProcessing
	if _, err := svc.Update(ctx, o.ID, &UpdateRequest{Status: &processing}); !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled order must not be reopened, got %v", err)
	}
}

func TestService_TestsLockedAfterCollection(t *testing.T) {
	svc := newTestService()
	ctx := doctorCtx()
	o, _ := svc.Create(ctx, cbcOrder())
	collected := StatusSampleCollected
	if _, err := svc.Update(ctx, o.ID, &UpdateRequest{Status: &collected}); err != nil {
		t.Fatal(err)
	}
	tests := []Test{{Code: "CBC", Name: "Complete Blood Count", Price: 25}}
	if _, err := svc.Update(ctx, o.ID, &UpdateRequest{Tests: &tests}); !errors.Is(err, ErrTestsLocked) {
		t.Errorf("expected ErrTestsLocked, got %v", err)
	}
}

func TestService_ListByStatus(t *testing.T) {
	svc := newTestService()
	ctx := doctorCtx()
	first, _ := svc.Create(ctx, cbcOrder())
	if _, err := svc.Create(ctx, cbcOrder()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordResults(ctx, first.ID, &ResultsRequest{Results: []Result{{TestCode: "CBC", Value: "normal"}}}); err != nil {
		t.Fatal(err)
	}

	ready, total, err := svc.List(ctx, ListFilter{Status: StatusResultsReady})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || ready[0].ID != first.ID {
		t.Errorf("unexpected listing %d %+v", total, ready)
	}
}
