package ward

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// Service owns wards and their bed arrays. Every change to a bed array is a
// read-modify-write of the whole ward document, so those run under the ward
// lock.
type Service struct {
	repo     Repository
	locker   lock.Locker
	validate *apierr.Validator
	activity activity.Recorder
	metrics  *telemetry.Metrics
}

func NewService(repo Repository, locker lock.Locker, rec activity.Recorder, metrics *telemetry.Metrics) *Service {
	return &Service{repo: repo, locker: locker, validate: apierr.NewValidator(), activity: rec, metrics: metrics}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Ward, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Ward, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Ward, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	beds := make([]Bed, 0, len(req.Beds))
	seen := make(map[string]bool, len(req.Beds))
	for i, in := range req.Beds {
		if seen[in.Number] {
			return nil, apierr.Field(fmt.Sprintf("beds[%d].number", i), ErrDuplicateBed.Error())
		}
		seen[in.Number] = true
		beds = append(beds, newBed(in))
	}
	w, err := s.repo.Create(ctx, &Ward{Name: req.Name, Type: req.Type, Floor: req.Floor, Beds: beds})
	if err != nil {
		return nil, err
	}
	s.record(ctx, w, fmt.Sprintf("Created ward %s with %d bed(s)", w.Name, len(w.Beds)), "building")
	return w, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Ward, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, w, fmt.Sprintf("Updated ward %s", w.Name), "building")
	return w, nil
}

// Delete refuses while any bed is occupied.
func (s *Service) Delete(ctx context.Context, id string) error {
	var name string
	err := s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		if w.Occupancy()[BedOccupied] > 0 {
			return ErrWardOccupied
		}
		name = w.Name
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Deleted ward %s", name),
		EntityType: "ward",
		EntityID:   id,
		Icon:       "trash",
	})
	return nil
}

func (s *Service) AddBed(ctx context.Context, id string, in *BedInput) (*Ward, error) {
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	var out *Ward
	err := s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		if _, exists := w.bed(in.Number); exists {
			return apierr.Field("number", ErrDuplicateBed.Error())
		}
		var err error
		out, err = s.repo.SetBeds(ctx, id, append(w.Beds, newBed(*in)))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, out, fmt.Sprintf("Added bed %s to %s", in.Number, out.Name), "bed")
	return out, nil
}

// UpdateBed changes a bed's status. Occupied beds change only through an
// admission or discharge.
func (s *Service) UpdateBed(ctx context.Context, id, number string, patch *BedPatch) (*Ward, error) {
	if err := s.validate.Validate(patch); err != nil {
		return nil, err
	}
	var out *Ward
	err := s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		i, ok := w.bed(number)
		if !ok {
			return ErrBedNotFound
		}
		if w.Beds[i].Status == BedOccupied {
			return ErrBedOccupied
		}
		w.Beds[i].Status = patch.Status
		var err error
		out, err = s.repo.SetBeds(ctx, id, w.Beds)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, out, fmt.Sprintf("Set bed %s in %s to %s", number, out.Name, patch.Status), "bed")
	return out, nil
}

func (s *Service) RemoveBed(ctx context.Context, id, number string) (*Ward, error) {
	var out *Ward
	err := s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		i, ok := w.bed(number)
		if !ok {
			return ErrBedNotFound
		}
		if w.Beds[i].Status == BedOccupied {
			return ErrBedOccupied
		}
		var err error
		out, err = s.repo.SetBeds(ctx, id, append(w.Beds[:i], w.Beds[i+1:]...))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, out, fmt.Sprintf("Removed bed %s from %s", number, out.Name), "bed")
	return out, nil
}

// OccupyBed assigns an Available bed to a patient. It returns the ward so
// callers can denormalize its name.
func (s *Service) OccupyBed(ctx context.Context, id, number, patientID, patientName string) (*Ward, error) {
	var out *Ward
	err := s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		i, ok := w.bed(number)
		if !ok {
			return ErrBedNotFound
		}
		if w.Beds[i].Status != BedAvailable {
			return fmt.Errorf("bed %s is %s: %w", number, w.Beds[i].Status, ErrBedUnavailable)
		}
		w.Beds[i] = Bed{Number: number, Status: BedOccupied, PatientID: patientID, PatientName: patientName}
		var err error
		out, err = s.repo.SetBeds(ctx, id, w.Beds)
		return err
	})
	return out, err
}

// ReleaseBed frees a bed held by patientID. A bed already released or
// reassigned is left alone.
func (s *Service) ReleaseBed(ctx context.Context, id, number, patientID string) error {
	return s.withWard(ctx, id, func(ctx context.Context, w *Ward) error {
		i, ok := w.bed(number)
		if !ok || w.Beds[i].PatientID != patientID {
			return nil
		}
		w.Beds[i] = Bed{Number: number, Status: BedAvailable}
		_, err := s.repo.SetBeds(ctx, id, w.Beds)
		return err
	})
}

// RenamePatient rewrites the denormalized name on beds held by patientID
// and reports how many wards changed.
func (s *Service) RenamePatient(ctx context.Context, patientID, name string) (int, error) {
	wards, _, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, candidate := range wards {
		if !holds(candidate, patientID, name) {
			continue
		}
		err := s.withWard(ctx, candidate.ID, func(ctx context.Context, w *Ward) error {
			dirty := false
			for i := range w.Beds {
				if w.Beds[i].PatientID == patientID && w.Beds[i].PatientName != name {
					w.Beds[i].PatientName = name
					dirty = true
				}
			}
			if !dirty {
				return nil
			}
			changed++
			_, err := s.repo.SetBeds(ctx, w.ID, w.Beds)
			return err
		})
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

func holds(w *Ward, patientID, name string) bool {
	for _, b := range w.Beds {
		if b.PatientID == patientID && b.PatientName != name {
			return true
		}
	}
	return false
}

func (s *Service) withWard(ctx context.Context, id string, fn func(context.Context, *Ward) error) error {
	err := s.locker.WithLock(ctx, lock.KindWard, []string{id}, func(ctx context.Context) error {
		w, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, w)
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.metrics.BookingConflict(lock.KindWard)
	}
	return err
}

func (s *Service) record(ctx context.Context, w *Ward, action, icon string) {
	s.activity.Record(ctx, activity.Entry{
		Action:     action,
		EntityType: "ward",
		EntityID:   w.ID,
		Icon:       icon,
		Link:       "/wards/" + w.ID,
	})
}

func newBed(in BedInput) Bed {
	status := in.Status
	if status == "" {
		status = BedAvailable
	}
	return Bed{Number: in.Number, Status: status}
}
