package settings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestService(store docstore.Store) *Service {
	return NewService(store, blobstore.NewMemoryStore(), activity.Nop{}, zerolog.Nop(), 1024)
}

func strPtr(s string) *string { return &s }

func TestService_LoadAppliesDefaults(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.Put(ctx, Collection, AppID, docstore.Document{"clinic_name": "Harbour Clinic"}); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(store)
	if err := svc.Load(ctx); err != nil {
		t.Fatal(err)
	}

	app := svc.App()
	def := DefaultApp()
	if app.ClinicName != "Harbour Clinic" {
		t.Errorf("stored value ignored: %q", app.ClinicName)
	}
	if app.Currency != def.Currency || app.OpeningTime != def.OpeningTime || len(app.WorkingDays) != 5 {
		t.Errorf("defaults not applied: %+v", app)
	}
	if fees := svc.Fees(); fees.ConsultationFee != 0 || fees.CheckupFee != 0 {
		t.Errorf("unexpected fees %+v", fees)
	}
}

func TestService_UpdateAppMerges(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.UpdateApp(ctx, &AppPatch{ClinicName: strPtr("Harbour Clinic")}); err != nil {
		t.Fatal(err)
	}
	days := []string{"Monday", "Saturday"}
	got, err := svc.UpdateApp(ctx, &AppPatch{Currency: strPtr("NGN"), WorkingDays: &days})
	if err != nil {
		t.Fatal(err)
	}
	if got.ClinicName != "Harbour Clinic" || got.Currency != "NGN" || len(got.WorkingDays) != 2 {
		t.Errorf("merge failed: %+v", got)
	}

	fresh := newTestService(store)
	if err := fresh.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if fresh.App().Currency != "NGN" || fresh.App().ClinicName != "Harbour Clinic" {
		t.Errorf("settings not persisted: %+v", fresh.App())
	}
}

func TestService_UpdateAppValidation(t *testing.T) {
	svc := newTestService(memory.New())
	ctx := context.Background()
	tests := []struct {
		name  string
		patch AppPatch
		field string
	}{
		{"color", AppPatch{ThemePrimaryColor: strPtr("teal")}, "themePrimaryColor"},
		{"currency", AppPatch{Currency: strPtr("DOLLARS")}, "currency"},
		{"clock", AppPatch{OpeningTime: strPtr("8am")}, "openingTime"},
		{"order", AppPatch{OpeningTime: strPtr("19:00")}, "closingTime"},
		{"day", AppPatch{WorkingDays: &[]string{"Funday"}}, "workingDays[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateApp(ctx, &tt.patch)
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) || len(apiErr.Errors[tt.field]) == 0 {
				t.Fatalf("expected error on %s, got %v", tt.field, err)
			}
		})
	}
	if svc.App().OpeningTime != "08:00" {
		t.Error("rejected patch changed the in-memory copy")
	}
}

func TestService_UpdateFees(t *testing.T) {
	svc := newTestService(memory.New())
	ctx := context.Background()
	fee := 45.0
	if _, err := svc.UpdateFees(ctx, &FeesPatch{ConsultationFee: &fee}); err != nil {
		t.Fatal(err)
	}
	checkup := 30.0
	got, err := svc.UpdateFees(ctx, &FeesPatch{CheckupFee: &checkup})
	if err != nil {
		t.Fatal(err)
	}
	if got.ConsultationFee != 45 || got.CheckupFee != 30 || svc.Fees().CheckupFee != 30 {
		t.Errorf("unexpected fees %+v", got)
	}

	negative := -1.0
	if _, err := svc.UpdateFees(ctx, &FeesPatch{CheckupFee: &negative}); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for negative fee, got %v", err)
	}
}

func TestService_Logo(t *testing.T) {
	svc := newTestService(memory.New())
	ctx := context.Background()

	if _, _, err := svc.OpenLogo(ctx); !errors.Is(err, ErrNoLogo) {
		t.Fatalf("expected ErrNoLogo, got %v", err)
	}

	app, err := svc.UploadLogo(ctx, bytes.NewReader(pngHeader), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if app.LogoKey != LogoKey || app.LogoURL == "" {
		t.Errorf("logo key not recorded: %+v", app)
	}
	info, body, err := svc.OpenLogo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if info.ContentType != "image/png" || !bytes.Equal(data, pngHeader) {
		t.Errorf("unexpected logo %+v", info)
	}
}

func TestService_LogoRejections(t *testing.T) {
	svc := newTestService(memory.New())
	ctx := context.Background()

	if _, err := svc.UploadLogo(ctx, bytes.NewReader([]byte("GIF89a")), "image/gif"); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("gif: expected 400, got %v", err)
	}
	if _, err := svc.UploadLogo(ctx, bytes.NewReader([]byte("not really a png")), "image/png"); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("mislabelled: expected 400, got %v", err)
	}
	big := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
	if _, err := svc.UploadLogo(ctx, bytes.NewReader(big), "image/png"); apierr.StatusOf(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("oversize: expected 413, got %v", err)
	}
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"/>`)
	if _, err := svc.UploadLogo(ctx, bytes.NewReader(svg), "image/svg+xml"); err != nil {
		t.Errorf("svg should be accepted: %v", err)
	}
}

func TestService_WatchRefreshesCopy(t *testing.T) {
	broker := changefeed.NewBroker()
	sub := broker.Subscribe(4)
	svc := newTestService(memory.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Watch(ctx, sub)
		close(done)
	}()

	err := broker.Publish(ctx, changefeed.Change{
		Collection: Collection,
		ID:         GeneralFeesID,
		Op:         changefeed.OpUpdate,
		Doc:        docstore.Document{"consultation_fee": 60.0, "checkup_fee": 25.0},
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for svc.Fees().ConsultationFee != 60 {
		if time.Now().After(deadline) {
			t.Fatal("in-memory fees were not refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
