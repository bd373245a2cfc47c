package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
)

type patients map[string]string

func (p patients) DisplayName(_ context.Context, id string) (string, error) {
	if name, ok := p[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%s: %w", id, docstore.ErrNotFound)
}

type testEnv struct {
	svc    *Service
	wards  *ward.Service
	locker lock.Locker
	wardID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	locker := lock.NewMemoryLocker(time.Second)
	wards := ward.NewService(ward.NewDocRepo(store), locker, activity.Nop{}, nil)
	w, err := wards.Create(context.Background(), &ward.CreateRequest{
		Name: "Maternity East", Type: "Maternity",
		Beds: []ward.BedInput{{Number: "M1"}, {Number: "M2"}, {Number: "M3", Status: ward.BedReserved}},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(NewDocRepo(store), patients{"p-1": "Amara Okafor", "p-2": "Lena Fischer"},
		wards, locker, activity.Nop{}, nil, zerolog.Nop())
	return &testEnv{svc: svc, wards: wards, locker: locker, wardID: w.ID}
}

func nurseCtx() context.Context {
	return auth.WithIdentity(context.Background(), "n-1", "Joy Adebayo", []string{auth.RoleNurse})
}

func TestService_AdmitOccupiesBed(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.svc.Admit(nurseCtx(), &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M1", Reason: "Labour"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusAdmitted || a.WardName != "Maternity East" || a.AdmittedByName != "Joy Adebayo" {
		t.Errorf("unexpected admission %+v", a)
	}
	if a.DischargedAt != nil || a.AdmittedAt.IsZero() {
		t.Errorf("unexpected timestamps %+v", a)
	}

	w, _ := env.wards.Get(context.Background(), env.wardID)
	if w.Beds[0].Status != ward.BedOccupied || w.Beds[0].PatientID != "p-1" {
		t.Errorf("bed not occupied: %+v", w.Beds[0])
	}
}

func TestService_AdmitRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := nurseCtx()
	if _, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M1"}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-2", WardID: env.wardID, BedNumber: "M1"}); !errors.Is(err, ward.ErrBedUnavailable) {
		t.Errorf("occupied bed: expected ErrBedUnavailable, got %v", err)
	}
	if _, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-2", WardID: env.wardID, BedNumber: "M3"}); !errors.Is(err, ward.ErrBedUnavailable) {
		t.Errorf("reserved bed: expected ErrBedUnavailable, got %v", err)
	}
	if _, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M2"}); !errors.Is(err, ErrAlreadyAdmitted) {
		t.Errorf("double admission: expected ErrAlreadyAdmitted, got %v", err)
	}

	fieldCases := []struct {
		req   AdmitRequest
		field string
	}{
		{AdmitRequest{PatientID: "ghost", WardID: env.wardID, BedNumber: "M2"}, "patientId"},
		{AdmitRequest{PatientID: "p-2", WardID: "nowhere", BedNumber: "M2"}, "wardId"},
		{AdmitRequest{PatientID: "p-2", WardID: env.wardID, BedNumber: "X9"}, "bedNumber"},
		{AdmitRequest{PatientID: "p-2", WardID: env.wardID}, "bedNumber"},
	}
	for _, tc := range fieldCases {
		req := tc.req
		_, err := env.svc.Admit(ctx, &req)
		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) || len(apiErr.Errors[tc.field]) == 0 {
			t.Errorf("expected field error on %s, got %v", tc.field, err)
		}
	}

	open, total, _ := env.svc.List(ctx, ListFilter{Status: StatusAdmitted})
	if total != 1 || open[0].PatientID != "p-1" {
		t.Errorf("rejected admissions were written: %d", total)
	}
}

func TestService_DischargeFreesBed(t *testing.T) {
	env := newTestEnv(t)
	ctx := nurseCtx()
	a, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M2"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.svc.Discharge(ctx, a.ID, &DischargeRequest{Notes: "Mother and baby well"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDischarged || got.DischargedAt == nil || got.DischargeNotes != "Mother and baby well" {
		t.Errorf("unexpected discharge %+v", got)
	}
	w, _ := env.wards.Get(context.Background(), env.wardID)
	if w.Beds[1].Status != ward.BedAvailable || w.Beds[1].PatientID != "" {
		t.Errorf("bed not freed: %+v", w.Beds[1])
	}

	if _, err := env.svc.Discharge(ctx, a.ID, &DischargeRequest{}); !errors.Is(err, ErrAlreadyDischarged) {
		t.Errorf("expected ErrAlreadyDischarged, got %v", err)
	}
	if _, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M2"}); err != nil {
		t.Errorf("readmission after discharge should succeed: %v", err)
	}
}

func TestService_DischargeUnknown(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Discharge(nurseCtx(), "missing", &DischargeRequest{}); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DischargeRetriesAfterBusyWard(t *testing.T) {
	env := newTestEnv(t)
	ctx := nurseCtx()
	a, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M1"})
	if err != nil {
		t.Fatal(err)
	}

	// Another request is editing the ward while the discharge runs.
	err = env.locker.WithLock(ctx, lock.KindWard, []string{env.wardID}, func(ctx context.Context) error {
		_, err := env.svc.Discharge(ctx, a.ID, &DischargeRequest{})
		return err
	})
	if !errors.Is(err, ErrBedBusy) {
		t.Fatalf("expected ErrBedBusy, got %v", err)
	}
	still, err := env.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if still.Status != StatusAdmitted || still.DischargedAt != nil {
		t.Errorf("failed discharge must leave the admission open: %+v", still)
	}
	w, _ := env.wards.Get(ctx, env.wardID)
	if w.Beds[0].Status != ward.BedOccupied || w.Beds[0].PatientID != "p-1" {
		t.Errorf("bed changed by failed discharge: %+v", w.Beds[0])
	}

	got, err := env.svc.Discharge(ctx, a.ID, &DischargeRequest{})
	if err != nil {
		t.Fatalf("retry: unexpected error: %v", err)
	}
	if got.Status != StatusDischarged {
		t.Errorf("expected Discharged, got %s", got.Status)
	}
	w, _ = env.wards.Get(ctx, env.wardID)
	if w.Beds[0].Status != ward.BedAvailable {
		t.Errorf("bed not freed on retry: %+v", w.Beds[0])
	}
}

func TestService_AdmitWhilePatientLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := nurseCtx()
	err := env.locker.WithLock(ctx, lock.KindPatient, []string{"p-1"}, func(ctx context.Context) error {
		_, err := env.svc.Admit(ctx, &AdmitRequest{PatientID: "p-1", WardID: env.wardID, BedNumber: "M1"})
		return err
	})
	if !errors.Is(err, ErrPatientBusy) {
		t.Fatalf("expected ErrPatientBusy, got %v", err)
	}
	w, _ := env.wards.Get(ctx, env.wardID)
	if w.Beds[0].Status != ward.BedAvailable {
		t.Errorf("bed occupied by a refused admission: %+v", w.Beds[0])
	}
}

func TestService_ConcurrentAdmissionsOfOnePatient(t *testing.T) {
	env := newTestEnv(t)
	ctx := nurseCtx()
	icu, err := env.wards.Create(ctx, &ward.CreateRequest{
		Name: "Intensive Care", Type: "ICU", Beds: []ward.BedInput{{Number: "I1"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	targets := []AdmitRequest{
		{PatientID: "p-1", WardID: env.wardID, BedNumber: "M1"},
		{PatientID: "p-1", WardID: icu.ID, BedNumber: "I1"},
	}
	errs := make([]error, len(targets))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req := targets[i]
			_, errs[i] = env.svc.Admit(ctx, &req)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyAdmitted), errors.Is(err, ErrPatientBusy):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one admission, got %d (%v)", succeeded, errs)
	}

	_, total, _ := env.svc.List(ctx, ListFilter{PatientID: "p-1", Status: StatusAdmitted})
	if total != 1 {
		t.Errorf("expected one open admission, got %d", total)
	}
	occupied := 0
	for _, id := range []string{env.wardID, icu.ID} {
		w, _ := env.wards.Get(ctx, id)
		for _, b := range w.Beds {
			if b.Status == ward.BedOccupied {
				occupied++
			}
		}
	}
	if occupied != 1 {
		t.Errorf("expected one occupied bed, got %d", occupied)
	}
}
