package cascade

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

type fakeBeds struct {
	calls map[string]string
}

func (f *fakeBeds) RenamePatient(_ context.Context, patientID, name string) (int, error) {
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[patientID] = name
	return 1, nil
}

func mustInsert(t *testing.T, store docstore.Store, collection string, doc docstore.Document) string {
	t.Helper()
	id, err := store.Insert(context.Background(), collection, doc)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func mustGet(t *testing.T, store docstore.Store, collection, id string) docstore.Document {
	t.Helper()
	d, err := store.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestApply_PatientRename(t *testing.T) {
	store := memory.New()
	beds := &fakeBeds{}
	w := NewWorker(store, beds, zerolog.Nop(), nil)

	appt := mustInsert(t, store, appointment.Collection, docstore.Document{"patient_id": "p1", "patient_name": "Ada Obi"})
	other := mustInsert(t, store, appointment.Collection, docstore.Document{"patient_id": "p2", "patient_name": "Ben Eze"})
	order := mustInsert(t, store, laborder.Collection, docstore.Document{"patient_id": "p1", "patient_name": "Ada Obi"})

	err := w.Apply(context.Background(), changefeed.Change{
		Collection: patient.Collection,
		ID:         "p1",
		Op:         changefeed.OpUpdate,
		Fields:     []string{"first_name", "full_name", "updated_at"},
		Doc:        docstore.Document{"full_name": "Adaeze Obi"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := mustGet(t, store, appointment.Collection, appt).String("patient_name"); got != "Adaeze Obi" {
		t.Errorf("appointment name = %q", got)
	}
	if got := mustGet(t, store, laborder.Collection, order).String("patient_name"); got != "Adaeze Obi" {
		t.Errorf("lab order name = %q", got)
	}
	if got := mustGet(t, store, appointment.Collection, other).String("patient_name"); got != "Ben Eze" {
		t.Errorf("unrelated appointment touched: %q", got)
	}
	if beds.calls["p1"] != "Adaeze Obi" {
		t.Errorf("beds not renamed: %v", beds.calls)
	}
}

func TestApply_IgnoresUnrelatedPatientFields(t *testing.T) {
	store := memory.New()
	beds := &fakeBeds{}
	w := NewWorker(store, beds, zerolog.Nop(), nil)
	appt := mustInsert(t, store, appointment.Collection, docstore.Document{"patient_id": "p1", "patient_name": "Ada Obi"})

	err := w.Apply(context.Background(), changefeed.Change{
		Collection: patient.Collection,
		ID:         "p1",
		Op:         changefeed.OpUpdate,
		Fields:     []string{"phone", "updated_at"},
		Doc:        docstore.Document{"full_name": "Someone Else"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, store, appointment.Collection, appt).String("patient_name"); got != "Ada Obi" {
		t.Errorf("name rewritten on a phone change: %q", got)
	}
	if len(beds.calls) != 0 {
		t.Errorf("beds renamed on a phone change")
	}
}

func TestApply_StaffRename(t *testing.T) {
	store := memory.New()
	metrics := telemetry.New()
	w := NewWorker(store, nil, zerolog.Nop(), metrics)

	appt := mustInsert(t, store, appointment.Collection, docstore.Document{"provider_id": "u1", "provider_name": "Dr. Okafor"})
	order := mustInsert(t, store, laborder.Collection, docstore.Document{"ordered_by_id": "u1", "ordered_by_name": "Dr. Okafor"})

	err := w.Apply(context.Background(), changefeed.Change{
		Collection: user.Collection,
		ID:         "u1",
		Op:         changefeed.OpUpdate,
		Fields:     []string{"name", "updated_at"},
		Doc:        docstore.Document{"name": "Dr. Chidi Okafor"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, store, appointment.Collection, appt).String("provider_name"); got != "Dr. Chidi Okafor" {
		t.Errorf("provider name = %q", got)
	}
	if got := mustGet(t, store, laborder.Collection, order).String("ordered_by_name"); got != "Dr. Chidi Okafor" {
		t.Errorf("ordered by name = %q", got)
	}

	want := `
# HELP clinicdesk_cascade_updates_total Denormalized copies rewritten after a source change
# TYPE clinicdesk_cascade_updates_total counter
clinicdesk_cascade_updates_total{collection="appointments"} 1
clinicdesk_cascade_updates_total{collection="lab_orders"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(want), "clinicdesk_cascade_updates_total"); err != nil {
		t.Error(err)
	}
}

func TestApply_InvoiceLinks(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, nil, zerolog.Nop(), nil)
	appt := mustInsert(t, store, appointment.Collection, docstore.Document{"patient_id": "p1"})
	order := mustInsert(t, store, laborder.Collection, docstore.Document{"patient_id": "p1"})

	err := w.Apply(context.Background(), changefeed.Change{
		Collection: invoice.Collection,
		ID:         "inv1",
		Op:         changefeed.OpCreate,
		Doc: docstore.Document{
			"status":         invoice.StatusPaid,
			"appointment_id": appt,
			"lab_order_id":   order,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []struct{ collection, id string }{
		{appointment.Collection, appt},
		{laborder.Collection, order},
	} {
		d := mustGet(t, store, ref.collection, ref.id)
		if d.String("invoice_id") != "inv1" || d.String("payment_status") != invoice.StatusPaid {
			t.Errorf("%s not linked: %v", ref.collection, d)
		}
	}
}

func TestApply_InvoiceMissingLinkIsSkipped(t *testing.T) {
	w := NewWorker(memory.New(), nil, zerolog.Nop(), nil)
	err := w.Apply(context.Background(), changefeed.Change{
		Collection: invoice.Collection,
		ID:         "inv1",
		Op:         changefeed.OpCreate,
		Doc:        docstore.Document{"status": invoice.StatusPendingPayment, "appointment_id": "gone"},
	})
	if err != nil {
		t.Errorf("missing link should be skipped, got %v", err)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	broker := changefeed.NewBroker()
	store := changefeed.Observe(memory.New(), broker, zerolog.Nop(), nil)
	wards := ward.NewService(ward.NewDocRepo(store), lock.NewMemoryLocker(time.Second), activity.Nop{}, nil)
	patients := patient.NewService(patient.NewDocRepo(store), activity.Nop{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := patients.Create(ctx, &patient.CreateRequest{
		FirstName: "Ada", LastName: "Obi", DateOfBirth: "1990-04-01", Gender: "Female",
	})
	if err != nil {
		t.Fatal(err)
	}
	wd, err := wards.Create(ctx, &ward.CreateRequest{Name: "East", Type: "General", Beds: []ward.BedInput{{Number: "1"}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wards.OccupyBed(ctx, wd.ID, "1", p.ID, p.FirstName+" "+p.LastName); err != nil {
		t.Fatal(err)
	}
	appt := mustInsert(t, store, appointment.Collection, docstore.Document{"patient_id": p.ID, "patient_name": "Ada Obi"})

	sub := broker.Subscribe(64)
	done := make(chan struct{})
	go func() {
		NewWorker(store, wards, zerolog.Nop(), nil).Run(ctx, sub)
		close(done)
	}()

	first := "Adaeze"
	if _, err := patients.Update(ctx, p.ID, &patient.UpdateRequest{FirstName: &first}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		apptName := mustGet(t, store, appointment.Collection, appt).String("patient_name")
		w, err := wards.Get(ctx, wd.ID)
		if err != nil {
			t.Fatal(err)
		}
		if apptName == "Adaeze Obi" && w.Beds[0].PatientName == "Adaeze Obi" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cascade did not land: appointment %q, bed %q", apptName, w.Beds[0].PatientName)
		}
		time.Sleep(5 * time.Millisecond)
	}

	sub.Close()
	<-done
}
