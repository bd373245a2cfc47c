package user

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	svc := NewService(NewDocRepo(store), lock.NewMemoryLocker(time.Second), activity.Nop{})
	svc.bcryptCost = bcrypt.MinCost
	return svc, store
}

func mustCreate(t *testing.T, svc *Service, req *CreateRequest) *User {
	t.Helper()
	u, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create %s: %v", req.Email, err)
	}
	return u
}

func doctor() *CreateRequest {
	return &CreateRequest{
		Name:       "Dr. Ruth Mensah",
		Email:      "  Ruth.Mensah@Clinic.example ",
		Password:   "correct-horse",
		Role:       auth.RoleDoctor,
		Department: "General Practice",
	}
}

func TestService_CreateHashesPassword(t *testing.T) {
	svc, store := newTestService()
	u, err := svc.Create(context.Background(), doctor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "ruth.mensah@clinic.example" || u.Status != StatusActive {
		t.Errorf("unexpected user %+v", u)
	}

	raw, err := store.Get(context.Background(), Collection, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	hash := raw.String("password_hash")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not match: %v", err)
	}

	body, _ := json.Marshal(u)
	if strings.Contains(string(body), "password") {
		t.Errorf("password material leaked: %s", body)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Create(ctx, doctor()); err != nil {
		t.Fatal(err)
	}

	dup := doctor()
	dup.Name = "Someone Else"
	dup.Email = "RUTH.MENSAH@clinic.example"
	_, err := svc.Create(ctx, dup)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Errors["email"][0] != ErrEmailTaken.Error() {
		t.Fatalf("expected email field error, got %v", err)
	}
}

func TestService_UpdateEmailAndPassword(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	u := mustCreate(t, svc, doctor())
	other := doctor()
	other.Email = "other@clinic.example"
	o := mustCreate(t, svc, other)

	same := " RUTH.mensah@clinic.example "
	got, err := svc.Update(ctx, u.ID, &UpdateRequest{Email: &same})
	if err != nil {
		t.Fatalf("keeping own email must not conflict: %v", err)
	}
	if got.Email != "ruth.mensah@clinic.example" {
		t.Errorf("email not normalized: %q", got.Email)
	}
	taken := "other@clinic.example"
	if _, err := svc.Update(ctx, u.ID, &UpdateRequest{Email: &taken}); err == nil {
		t.Error("expected conflict on taken email")
	}

	pw := "new-secret-123"
	if _, err := svc.Update(ctx, o.ID, &UpdateRequest{Password: &pw}); err != nil {
		t.Fatal(err)
	}
	raw, _ := store.Get(ctx, Collection, o.ID)
	if bcrypt.CompareHashAndPassword([]byte(raw.String("password_hash")), []byte(pw)) != nil {
		t.Error("password not rehashed")
	}
}

func TestService_ProviderName(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doc := mustCreate(t, svc, doctor())
	nurseReq := doctor()
	nurseReq.Email = "nurse@clinic.example"
	nurseReq.Name = "Joy Adebayo"
	nurseReq.Role = auth.RoleNurse
	nurse := mustCreate(t, svc, nurseReq)

	if name, err := svc.ProviderName(ctx, doc.ID); err != nil || name != "Dr. Ruth Mensah" {
		t.Errorf("got %q, %v", name, err)
	}
	if _, err := svc.ProviderName(ctx, nurse.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("nurse must not resolve as provider, got %v", err)
	}
}

func TestService_CannotDeleteSelf(t *testing.T) {
	svc, _ := newTestService()
	u := mustCreate(t, svc, doctor())
	ctx := auth.WithIdentity(context.Background(), u.ID, u.Name, []string{auth.RoleAdmin})

	if err := svc.Delete(ctx, u.ID); apierr.StatusOf(err) != 400 {
		t.Errorf("expected 400, got %v", err)
	}
	if err := svc.Delete(context.Background(), u.ID); err != nil {
		t.Errorf("delete by another admin failed: %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newTestService()
	req := doctor()
	req.Password = "short"
	req.Role = "janitor"
	_, err := svc.Create(context.Background(), req)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || len(apiErr.Errors["password"]) == 0 || len(apiErr.Errors["role"]) == 0 {
		t.Fatalf("expected password and role errors, got %v", err)
	}
}

func TestService_EmailClaimedByAnotherRequest(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	err := svc.locker.WithLock(ctx, lock.KindEmail, []string{"ruth.mensah@clinic.example"}, func(ctx context.Context) error {
		_, err := svc.Create(ctx, doctor())
		return err
	})
	if !errors.Is(err, ErrEmailBusy) {
		t.Fatalf("expected ErrEmailBusy, got %v", err)
	}
	if _, total, _ := svc.List(ctx, ListFilter{}); total != 0 {
		t.Errorf("expected no users, got %d", total)
	}
}

func TestService_ConcurrentCreatesKeepEmailUnique(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const n = 4
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Create(ctx, doctor())
		}(i)
	}
	close(start)
	wg.Wait()

	created := 0
	for _, err := range errs {
		var apiErr *apierr.Error
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrEmailBusy):
		case errors.As(err, &apiErr) && len(apiErr.Errors["email"]) > 0:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly one user created, got %d (%v)", created, errs)
	}
	if _, total, _ := svc.List(ctx, ListFilter{}); total != 1 {
		t.Errorf("expected one stored user, got %d", total)
	}
}
