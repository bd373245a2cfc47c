package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
)

type Service struct {
	repo       Repository
	locker     lock.Locker
	validate   *apierr.Validator
	activity   activity.Recorder
	bcryptCost int
}

// NewService serializes writes that claim an email address through locker,
// so the uniqueness check and the write cannot interleave.
func NewService(repo Repository, locker lock.Locker, rec activity.Recorder) *Service {
	return &Service{
		repo:       repo,
		locker:     locker,
		validate:   apierr.NewValidator(),
		activity:   rec,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}

	var u *User
	err = s.claimEmail(ctx, req.Email, "", func(ctx context.Context) error {
		var err error
		u, err = s.repo.Create(ctx, &User{
			Name:       req.Name,
			Email:      req.Email,
			Role:       req.Role,
			Phone:      req.Phone,
			Department: req.Department,
			Status:     status,
		}, string(hash))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Added %s %s", strings.ReplaceAll(u.Role, "_", " "), u.Name),
		EntityType: "user",
		EntityID:   u.ID,
		Icon:       "user-cog",
		Link:       "/admin/users/" + u.ID,
	})
	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*User, error) {
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		req.PasswordHash = &h
	}

	var u *User
	update := func(ctx context.Context) error {
		var err error
		u, err = s.repo.Update(ctx, id, req)
		return err
	}
	var err error
	if req.Email != nil {
		err = s.claimEmail(ctx, *req.Email, id, update)
	} else {
		err = update(ctx)
	}
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Updated user %s", u.Name),
		EntityType: "user",
		EntityID:   id,
		Icon:       "user-cog",
		Link:       "/admin/users/" + id,
	})
	return u, nil
}

// Delete removes a user. Admins cannot delete their own account.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == auth.UserIDFromContext(ctx) {
		return apierr.BadRequest("you cannot delete your own account")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Removed user %s", u.Name),
		EntityType: "user",
		EntityID:   id,
		Icon:       "user-x",
	})
	return nil
}

// ProviderName resolves a doctor's display name. Users with any other role
// are reported as not found.
func (s *Service) ProviderName(ctx context.Context, id string) (string, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if u.Role != auth.RoleDoctor {
		return "", fmt.Errorf("user %s is a %s: %w", id, u.Role, docstore.ErrNotFound)
	}
	return u.Name, nil
}

// claimEmail runs write while holding the lock on email, after checking no
// user other than self has it.
func (s *Service) claimEmail(ctx context.Context, email, self string, write func(context.Context) error) error {
	err := s.locker.WithLock(ctx, lock.KindEmail, []string{email}, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, email, self); err != nil {
			return err
		}
		return write(ctx)
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrEmailBusy
	}
	return err
}

func (s *Service) ensureEmailFree(ctx context.Context, email, self string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return apierr.Field("email", ErrEmailTaken.Error())
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
