package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

type PatientDirectory interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// LinkResolver reports which patient an appointment or lab order belongs to.
type LinkResolver interface {
	AppointmentPatient(ctx context.Context, id string) (string, error)
	LabOrderPatient(ctx context.Context, id string) (string, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	links    LinkResolver
	validate *apierr.Validator
	activity activity.Recorder
}

func NewService(repo Repository, patients PatientDirectory, links LinkResolver, rec activity.Recorder) *Service {
	return &Service{repo: repo, patients: patients, links: links, validate: apierr.NewValidator(), activity: rec}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Invoice, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apierr.Field("status", statusMessage)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// Create bills either itemized lines or a bare totalAmount. When both are
// given the explicit total wins.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Invoice, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 && req.TotalAmount == nil {
		return nil, apierr.Field("items", ErrNothingBilled.Error())
	}
	name, err := s.patients.DisplayName(ctx, req.PatientID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierr.Field("patientId", "patient does not exist")
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkLinks(ctx, req.PatientID, req.AppointmentID, req.LabOrderID); err != nil {
		return nil, err
	}

	inv := &Invoice{
		PatientID:     req.PatientID,
		PatientName:   name,
		AppointmentID: req.AppointmentID,
		LabOrderID:    req.LabOrderID,
		Items:         itemsOrEmpty(req.Items),
		TotalAmount:   SumItems(req.Items),
		AmountPaid:    round2(req.AmountPaid),
		PaymentMethod: req.PaymentMethod,
		DueDate:       req.DueDate,
	}
	if req.TotalAmount != nil {
		inv.TotalAmount = round2(*req.TotalAmount)
	}
	var status *string
	if req.Status != "" {
		status = &req.Status
	}
	if err := settle(inv, status, req.Status == StatusPaid && req.AmountPaid == 0); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Created invoice of %.2f for %s", created.TotalAmount, created.PatientName),
		EntityType: "invoice",
		EntityID:   created.ID,
		Icon:       "receipt",
		Link:       "/invoices/" + created.ID,
	})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Invoice, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Items != nil && len(*req.Items) == 0 && req.TotalAmount == nil {
		return nil, apierr.Field("items", ErrNothingBilled.Error())
	}

	next := *current
	if req.Items != nil {
		next.Items = itemsOrEmpty(*req.Items)
		if req.TotalAmount == nil {
			next.TotalAmount = SumItems(next.Items)
		}
	}
	if req.TotalAmount != nil {
		next.TotalAmount = round2(*req.TotalAmount)
	}
	if req.AmountPaid != nil {
		next.AmountPaid = round2(*req.AmountPaid)
	}
	if req.PaymentMethod != nil {
		next.PaymentMethod = *req.PaymentMethod
	}
	if req.DueDate != nil {
		next.DueDate = *req.DueDate
	}
	status := req.Status
	if status == nil && (current.Status == StatusCancelled || current.Status == StatusRefunded) {
		status = &current.Status
	}
	fillPaid := req.Status != nil && *req.Status == StatusPaid && req.AmountPaid == nil
	if err := settle(&next, status, fillPaid); err != nil {
		return nil, err
	}

	updated, err := s.repo.Save(ctx, id, &next)
	if err != nil {
		return nil, err
	}

	action := fmt.Sprintf("Updated invoice for %s", updated.PatientName)
	switch {
	case updated.AmountPaid > current.AmountPaid:
		action = fmt.Sprintf("Recorded payment of %.2f from %s", updated.AmountPaid-current.AmountPaid, updated.PatientName)
	case updated.Status != current.Status:
		action = fmt.Sprintf("Marked invoice for %s as %s", updated.PatientName, updated.Status)
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     action,
		EntityType: "invoice",
		EntityID:   id,
		Icon:       "banknote",
		Link:       "/invoices/" + id,
	})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{
		Action:     fmt.Sprintf("Deleted invoice for %s", inv.PatientName),
		EntityType: "invoice",
		EntityID:   id,
		Icon:       "trash",
	})
	return nil
}

func (s *Service) checkLinks(ctx context.Context, patientID, appointmentID, labOrderID string) error {
	check := func(field, id string, lookup func(context.Context, string) (string, error)) error {
		if id == "" {
			return nil
		}
		owner, err := lookup(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return apierr.Field(field, "does not exist")
		}
		if err != nil {
			return err
		}
		if owner != patientID {
			return apierr.Field(field, "belongs to a different patient")
		}
		return nil
	}
	if err := check("appointmentId", appointmentID, s.links.AppointmentPatient); err != nil {
		return err
	}
	return check("labOrderId", labOrderID, s.links.LabOrderPatient)
}

// settle checks the amounts and fixes the status. Payment statuses always
// follow the amounts; Cancelled and Refunded are kept as given. fillPaid
// marks the invoice fully paid when the caller set Paid without an amount.
func settle(inv *Invoice, status *string, fillPaid bool) error {
	if fillPaid {
		inv.AmountPaid = inv.TotalAmount
	}
	if inv.AmountPaid > inv.TotalAmount {
		return apierr.Field("amountPaid", "must not exceed totalAmount")
	}
	derived := DeriveStatus(inv.TotalAmount, inv.AmountPaid)
	if status == nil {
		inv.Status = derived
		return nil
	}
	switch s := *status; {
	case !validStatuses[s]:
		return apierr.Field("status", statusMessage)
	case s == StatusCancelled || s == StatusRefunded:
		inv.Status = s
	case s != derived:
		return apierr.Field("status", fmt.Sprintf("does not match amountPaid (expected %s)", derived))
	default:
		inv.Status = s
	}
	return nil
}

const statusMessage = "must be one of: Pending Payment, Partially Paid, Paid, Cancelled, Refunded"

func itemsOrEmpty(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
