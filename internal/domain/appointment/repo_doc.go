package appointment

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyPatientID       = "patient_id"
	keyPatientName     = "patient_name"
	keyProviderID      = "provider_id"
	keyProviderName    = "provider_name"
	keyDate            = "date"
	keyTime            = "time"
	keyDurationMinutes = "duration_minutes"
	keyType            = "type"
	keyReason          = "reason"
	keyNotes           = "notes"
	keyStatus          = "status"
	keyInvoiceID       = "invoice_id"
	keyPaymentStatus   = "payment_status"
	keyCreatedAt       = "created_at"
	keyUpdatedAt       = "updated_at"
)

var Indexes = []string{keyPatientID, keyProviderID, keyDate, keyStatus, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	q := docstore.Query{OrderBy: keyCreatedAt, Desc: true}
	for key, v := range map[string]string{
		keyPatientID:  f.PatientID,
		keyProviderID: f.ProviderID,
		keyDate:       f.Date,
		keyStatus:     f.Status,
	} {
		if v != "" {
			q.Where = append(q.Where, docstore.Eq(key, v))
		}
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return fromDocs(docs), total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*Appointment, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	now := docstore.Now()
	id, err := r.store.Insert(ctx, Collection, docstore.Document{
		keyPatientID:       a.PatientID,
		keyPatientName:     a.PatientName,
		keyProviderID:      a.ProviderID,
		keyProviderName:    a.ProviderName,
		keyDate:            a.Date,
		keyTime:            a.Time,
		keyDurationMinutes: a.DurationMinutes,
		keyType:            a.Type,
		keyReason:          a.Reason,
		keyNotes:           a.Notes,
		keyStatus:          a.Status,
		keyInvoiceID:       "",
		keyPaymentStatus:   "",
		keyCreatedAt:       now,
		keyUpdatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Update(ctx context.Context, id string, req *UpdateRequest) (*Appointment, error) {
	fields := docstore.Document{keyUpdatedAt: docstore.Now()}
	set := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	set(keyPatientID, req.PatientID)
	set(keyPatientName, req.PatientName)
	set(keyProviderID, req.ProviderID)
	set(keyProviderName, req.ProviderName)
	set(keyDate, req.Date)
	set(keyTime, req.Time)
	set(keyType, req.Type)
	set(keyReason, req.Reason)
	set(keyNotes, req.Notes)
	set(keyStatus, req.Status)
	if req.DurationMinutes != nil {
		fields[keyDurationMinutes] = *req.DurationMinutes
	}
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return nil
}

func (r *docRepo) ActiveInSlot(ctx context.Context, providerID, date, clock string) ([]*Appointment, error) {
	docs, err := r.store.Find(ctx, Collection, docstore.Query{Where: []docstore.Filter{
		docstore.Eq(keyProviderID, providerID),
		docstore.Eq(keyDate, date),
		docstore.Eq(keyTime, clock),
		docstore.In(keyStatus, StatusScheduled, StatusConfirmed, StatusArrived),
	}})
	if err != nil {
		return nil, fmt.Errorf("find slot bookings: %w", err)
	}
	return fromDocs(docs), nil
}

func fromDocs(docs []docstore.Document) []*Appointment {
	out := make([]*Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out
}

func fromDoc(d docstore.Document) *Appointment {
	return &Appointment{
		ID:              d.ID(),
		PatientID:       d.String(keyPatientID),
		PatientName:     d.String(keyPatientName),
		ProviderID:      d.String(keyProviderID),
		ProviderName:    d.String(keyProviderName),
		Date:            d.String(keyDate),
		Time:            d.String(keyTime),
		DurationMinutes: d.Int(keyDurationMinutes),
		Type:            d.String(keyType),
		Reason:          d.String(keyReason),
		Notes:           d.String(keyNotes),
		Status:          d.String(keyStatus),
		InvoiceID:       d.String(keyInvoiceID),
		PaymentStatus:   d.String(keyPaymentStatus),
		CreatedAt:       d.Time(keyCreatedAt),
		UpdatedAt:       d.Time(keyUpdatedAt),
	}
}

func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}
