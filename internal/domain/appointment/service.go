package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// PatientDirectory resolves patient display names.
type PatientDirectory interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// ProviderDirectory resolves doctors. A user that is not a doctor is
// reported as docstore.ErrNotFound.
type ProviderDirectory interface {
	ProviderName(ctx context.Context, id string) (string, error)
}

type Service struct {
	repo      Repository
	patients  PatientDirectory
	providers ProviderDirectory
	locker    lock.Locker
	validate  *apierr.Validator
	activity  activity.Recorder
	metrics   *telemetry.Metrics
}

func NewService(repo Repository, patients PatientDirectory, providers ProviderDirectory,
	locker lock.Locker, rec activity.Recorder, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		providers: providers,
		locker:    locker,
		validate:  apierr.NewValidator(),
		activity:  rec,
		metrics:   metrics,
	}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apierr.Field("status", statusMessage())
	}
	if f.Date != "" && !apierr.ValidDate(f.Date) {
		return nil, 0, apierr.Field("date", "must be a date in YYYY-MM-DD format")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = StatusScheduled
	}
	if !validStatuses[req.Status] {
		return nil, apierr.Field("status", statusMessage())
	}
	if terminalStatuses[req.Status] {
		return nil, apierr.Field("status", "a new appointment cannot start as "+req.Status)
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultDuration
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          req.Status,
	}
	var err error
	if a.PatientName, err = s.patientName(ctx, a.PatientID); err != nil {
		return nil, err
	}
	if a.ProviderName, err = s.providerName(ctx, a.ProviderID); err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.inSlot(ctx, a.ProviderID, a.Date, a.Time, "", func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Booked %s for %s with %s on %s at %s", strings.ToLower(created.Type), created.PatientName, created.ProviderName, created.Date, created.Time),
		EntityType: "appointment",
		EntityID:   created.ID,
		Icon:       "calendar-plus",
		Link:       "/appointments/" + created.ID,
	})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if !validStatuses[*req.Status] {
			return nil, apierr.Field("status", statusMessage())
		}
		if terminalStatuses[current.Status] && *req.Status != current.Status {
			return nil, fmt.Errorf("appointment is %s: %w", current.Status, ErrInvalidTransition)
		}
	}
	if terminalStatuses[current.Status] && reschedules(req) {
		return nil, fmt.Errorf("appointment is %s: %w", current.Status, ErrInvalidTransition)
	}

	if req.PatientID != nil && *req.PatientID != current.PatientID {
		name, err := s.patientName(ctx, *req.PatientID)
		if err != nil {
			return nil, err
		}
		req.PatientName = &name
	}
	if req.ProviderID != nil && *req.ProviderID != current.ProviderID {
		name, err := s.providerName(ctx, *req.ProviderID)
		if err != nil {
			return nil, err
		}
		req.ProviderName = &name
	}

	provider, date, clock, status := current.ProviderID, current.Date, current.Time, current.Status
	if req.ProviderID != nil {
		provider = *req.ProviderID
	}
	if req.Date != nil {
		date = *req.Date
	}
	if req.Time != nil {
		clock = *req.Time
	}
	if req.Status != nil {
		status = *req.Status
	}
	slotChanged := provider != current.ProviderID || date != current.Date || clock != current.Time
	reactivated := blockingStatuses[status] && !blockingStatuses[current.Status]

	var updated *Appointment
	write := func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, id, req)
		return err
	}
	if blockingStatuses[status] && (slotChanged || reactivated) {
		err = s.inSlot(ctx, provider, date, clock, id, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		Action:     describeUpdate(current, updated),
		EntityType: "appointment",
		EntityID:   id,
		Icon:       "calendar-check",
		Link:       "/appointments/" + id,
	})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Deleted appointment for %s on %s", a.PatientName, a.Date),
		EntityType: "appointment",
		EntityID:   id,
		Icon:       "calendar-x",
	})
	return nil
}

// inSlot runs fn under the provider slot lock once no other blocking
// appointment (other than self) occupies the slot.
func (s *Service) inSlot(ctx context.Context, provider, date, clock, self string, fn func(context.Context) error) error {
	err := s.locker.WithLock(ctx, lock.KindSlot, []string{provider, date, clock}, func(ctx context.Context) error {
		existing, err := s.repo.ActiveInSlot(ctx, provider, date, clock)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.ID != self {
				return ErrSlotTaken
			}
		}
		return fn(ctx)
	})
	if errors.Is(err, ErrSlotTaken) || errors.Is(err, lock.ErrNotAcquired) {
		s.metrics.BookingConflict(lock.KindSlot)
		return ErrSlotTaken
	}
	return err
}

func (s *Service) patientName(ctx context.Context, id string) (string, error) {
	name, err := s.patients.DisplayName(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", apierr.Field("patientId", "patient does not exist")
	}
	return name, err
}

func (s *Service) providerName(ctx context.Context, id string) (string, error) {
	name, err := s.providers.ProviderName(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", apierr.Field("providerId", "provider does not exist")
	}
	return name, err
}

func reschedules(req *UpdateRequest) bool {
	return req.ProviderID != nil || req.Date != nil || req.Time != nil
}

func describeUpdate(before, after *Appointment) string {
	switch {
	case before.Status != after.Status:
		return fmt.Sprintf("Marked appointment for %s as %s", after.PatientName, after.Status)
	case before.Date != after.Date || before.Time != after.Time:
		return fmt.Sprintf("Rescheduled appointment for %s to %s at %s", after.PatientName, after.Date, after.Time)
	default:
		return fmt.Sprintf("Updated appointment for %s", after.PatientName)
	}
}

func statusMessage() string {
	names := make([]string, 0, len(validStatuses))
	for s := range validStatuses {
		names = append(names, s)
	}
	sort.Strings(names)
	return "must be one of: " + strings.Join(names, ", ")
}
