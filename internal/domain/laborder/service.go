package laborder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// ErrTestsLocked means the sample is already in the lab.
var ErrTestsLocked = errors.New("tests can only change before the sample is collected")

type PatientDirectory interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	validate *apierr.Validator
	activity activity.Recorder
}

func NewService(repo Repository, patients PatientDirectory, rec activity.Recorder) *Service {
	return &Service{repo: repo, patients: patients, validate: apierr.NewValidator(), activity: rec}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*LabOrder, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apierr.Field("status", statusMessage)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*LabOrder, error) {
	return s.repo.GetByID(ctx, id)
}

// Create places an order on behalf of the calling user.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*LabOrder, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if err := uniqueCodes(req.Tests); err != nil {
		return nil, err
	}
	name, err := s.patients.DisplayName(ctx, req.PatientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierr.Field("patientId", "patient does not exist")
	}
	if err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityRoutine
	}
	actor := auth.ActorFromContext(ctx)

	o, err := s.repo.Create(ctx, &LabOrder{
		PatientID:     req.PatientID,
		PatientName:   name,
		OrderedByID:   actor.ID,
		OrderedByName: actor.Name,
		Tests:         req.Tests,
		Priority:      priority,
		Status:        StatusPendingSample,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Ordered %s for %s", testNames(o.Tests), o.PatientName),
		EntityType: "lab_order",
		EntityID:   o.ID,
		Icon:       "flask",
		Link:       "/lab-orders/" + o.ID,
	})
	return o, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*LabOrder, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != nil && !validStatuses[*req.Status] {
		return nil, apierr.Field("status", statusMessage)
	}
	if current.Status == StatusCancelled && (req.Status == nil || *req.Status != StatusCancelled) {
		return nil, ErrCancelled
	}
	if req.Tests != nil {
		if current.Status != StatusPendingSample {
			return nil, ErrTestsLocked
		}
		if err := uniqueCodes(*req.Tests); err != nil {
			return nil, err
		}
	}

	o, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	action := fmt.Sprintf("Updated lab order for %s", o.PatientName)
	if o.Status != current.Status {
		action = fmt.Sprintf("Moved lab order for %s to %s", o.PatientName, o.Status)
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     action,
		EntityType: "lab_order",
		EntityID:   id,
		Icon:       "flask",
		Link:       "/lab-orders/" + id,
	})
	return o, nil
}

// RecordResults stores results for ordered tests and marks the order
// Results Ready.
func (s *Service) RecordResults(ctx context.Context, id string, req *ResultsRequest) (*LabOrder, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return nil, ErrCancelled
	}
	ordered := make(map[string]bool, len(current.Tests))
	for _, t := range current.Tests {
		ordered[t.Code] = true
	}
	for i, r := range req.Results {
		if !ordered[r.TestCode] {
			return nil, apierr.Field(fmt.Sprintf("results[%d].testCode", i), ErrUnknownTest.Error())
		}
	}

	o, err := s.repo.SetResults(ctx, id, req.Results, StatusResultsReady)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Recorded %d result(s) for %s", len(req.Results), o.PatientName),
		EntityType: "lab_order",
		EntityID:   id,
		Icon:       "clipboard-check",
		Link:       "/lab-orders/" + id,
	})
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Deleted lab order for %s", o.PatientName),
		EntityType: "lab_order",
		EntityID:   id,
		Icon:       "trash",
	})
	return nil
}

const statusMessage = "must be one of: Pending Sample, Sample Collected, Processing, Results Ready, Completed, Cancelled"

func uniqueCodes(tests []Test) error {
	seen := make(map[string]bool, len(tests))
	for i, t := range tests {
		if seen[t.Code] {
			return apierr.Field(fmt.Sprintf("tests[%d].code", i), "is listed twice")
		}
		seen[t.Code] = true
	}
	return nil
}

func testNames(tests []Test) string {
	names := make([]string, 0, len(tests))
	for _, t := range tests {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}
