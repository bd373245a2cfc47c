package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

type PatientDirectory interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// Beds is the part of the ward service admissions drive.
type Beds interface {
	OccupyBed(ctx context.Context, wardID, number, patientID, patientName string) (*ward.Ward, error)
	ReleaseBed(ctx context.Context, wardID, number, patientID string) error
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	beds     Beds
	locker   lock.Locker
	validate *apierr.Validator
	activity activity.Recorder
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, beds Beds, locker lock.Locker,
	rec activity.Recorder, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		beds:     beds,
		locker:   locker,
		validate: apierr.NewValidator(),
		activity: rec,
		metrics:  metrics,
		logger:   logger.With().Str("component", "admission").Logger(),
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Admission, int, error) {
	if f.Status != "" && f.Status != StatusAdmitted && f.Status != StatusDischarged {
		return nil, 0, apierr.Field("status", "must be one of: Admitted, Discharged")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// Admit assigns an Available bed to the patient and opens an admission.
func (s *Service) Admit(ctx context.Context, req *AdmitRequest) (*Admission, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	patientName, err := s.patients.DisplayName(ctx, req.PatientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierr.Field("patientId", "patient does not exist")
	}
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)

	var created *Admission
	err = s.locker.WithLock(ctx, lock.KindPatient, []string{req.PatientID}, func(ctx context.Context) error {
		err := s.locker.WithLock(ctx, lock.KindBed, []string{req.WardID, req.BedNumber}, func(ctx context.Context) error {
			var err error
			created, err = s.admit(ctx, req, patientName, actor)
			return err
		})
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.BookingConflict(lock.KindBed)
			return ErrBedBusy
		}
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.metrics.BookingConflict(lock.KindPatient)
		return nil, ErrPatientBusy
	}
	if errors.Is(err, ward.ErrBedUnavailable) {
		s.metrics.BookingConflict(lock.KindBed)
	}
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Admitted %s to %s bed %s", created.PatientName, created.WardName, created.BedNumber),
		EntityType: "admission",
		EntityID:   created.ID,
		Icon:       "bed",
		Link:       "/admissions/" + created.ID,
	})
	return created, nil
}

// admit runs with both the patient and the bed locked.
func (s *Service) admit(ctx context.Context, req *AdmitRequest, patientName string, actor auth.Actor) (*Admission, error) {
	open, _, err := s.repo.List(ctx, ListFilter{PatientID: req.PatientID, Status: StatusAdmitted, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("%s in %s bed %s: %w", patientName, open[0].WardName, open[0].BedNumber, ErrAlreadyAdmitted)
	}

	w, err := s.beds.OccupyBed(ctx, req.WardID, req.BedNumber, req.PatientID, patientName)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return nil, apierr.Field("wardId", "ward does not exist")
	case errors.Is(err, ward.ErrBedNotFound):
		return nil, apierr.Field("bedNumber", "bed does not exist in this ward")
	case err != nil:
		return nil, err
	}

	created, err := s.repo.Create(ctx, &Admission{
		PatientID:      req.PatientID,
		PatientName:    patientName,
		WardID:         w.ID,
		WardName:       w.Name,
		BedNumber:      req.BedNumber,
		Reason:         req.Reason,
		AdmittedByID:   actor.ID,
		AdmittedByName: actor.Name,
		AdmittedAt:     s.now(),
	})
	if err != nil {
		if rerr := s.beds.ReleaseBed(context.WithoutCancel(ctx), req.WardID, req.BedNumber, req.PatientID); rerr != nil {
			s.logger.Error().Err(rerr).Str("ward_id", req.WardID).Str("bed", req.BedNumber).
				Msg("bed left occupied after failed admission")
		}
		return nil, err
	}
	return created, nil
}

// Discharge closes the admission and frees its bed. The bed is freed first
// so a failure leaves the admission open and the call can be retried.
func (s *Service) Discharge(ctx context.Context, id string, req *DischargeRequest) (*Admission, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusDischarged {
		return nil, ErrAlreadyDischarged
	}

	var out *Admission
	err = s.locker.WithLock(ctx, lock.KindBed, []string{current.WardID, current.BedNumber}, func(ctx context.Context) error {
		err := s.beds.ReleaseBed(ctx, current.WardID, current.BedNumber, current.PatientID)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if out, err = s.repo.Discharge(ctx, id, s.now(), req.Notes); err != nil {
			if _, rerr := s.beds.OccupyBed(context.WithoutCancel(ctx), current.WardID, current.BedNumber,
				current.PatientID, current.PatientName); rerr != nil && !errors.Is(rerr, docstore.ErrNotFound) {
				s.logger.Error().Err(rerr).Str("admission_id", id).Str("bed", current.BedNumber).
					Msg("bed left available for an open admission")
			}
			return err
		}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.metrics.BookingConflict(lock.KindBed)
		return nil, ErrBedBusy
	}
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Discharged %s from %s bed %s", out.PatientName, out.WardName, out.BedNumber),
		EntityType: "admission",
		EntityID:   id,
		Icon:       "door-open",
		Link:       "/admissions/" + id,
	})
	return out, nil
}
