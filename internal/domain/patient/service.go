package patient

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
)

type Service struct {
	repo     Repository
	validate *apierr.Validator
	activity activity.Recorder
}

func NewService(repo Repository, rec activity.Recorder) *Service {
	return &Service{repo: repo, validate: apierr.NewValidator(), activity: rec}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	if f.Status != "" && f.Status != StatusActive && f.Status != StatusInactive {
		return nil, 0, apierr.Field("status", "must be one of: Active, Inactive")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Registered new patient %s", p.FullName()),
		EntityType: "patient",
		EntityID:   p.ID,
		Icon:       "user-plus",
		Link:       "/patients/" + p.ID,
	})
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Patient, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Empty() {
		return s.repo.GetByID(ctx, id)
	}
	p, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Updated patient %s", p.FullName()),
		EntityType: "patient",
		EntityID:   p.ID,
		Icon:       "user-pen",
		Link:       "/patients/" + p.ID,
	})
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Removed patient %s", p.FullName()),
		EntityType: "patient",
		EntityID:   id,
		Icon:       "user-minus",
	})
	return nil
}

// DisplayName resolves the denormalized name other records carry.
func (s *Service) DisplayName(ctx context.Context, id string) (string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.FullName(), nil
}
