package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyPatientID      = "patient_id"
	keyPatientName    = "patient_name"
	keyWardID         = "ward_id"
	keyWardName       = "ward_name"
	keyBedNumber      = "bed_number"
	keyReason         = "reason"
	keyAdmittedByID   = "admitted_by_id"
	keyAdmittedByName = "admitted_by_name"
	keyStatus         = "status"
	keyAdmittedAt     = "admitted_at"
	keyDischargedAt   = "discharged_at"
	keyDischargeNotes = "discharge_notes"
	keyCreatedAt      = "created_at"
	keyUpdatedAt      = "updated_at"
)

var Indexes = []string{keyPatientID, keyWardID, keyStatus, keyAdmittedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*Admission, int, error) {
	q := docstore.Query{OrderBy: keyAdmittedAt, Desc: true}
	if f.PatientID != "" {
		q.Where = append(q.Where, docstore.Eq(keyPatientID, f.PatientID))
	}
	if f.WardID != "" {
		q.Where = append(q.Where, docstore.Eq(keyWardID, f.WardID))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq(keyStatus, f.Status))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}
	out := make([]*Admission, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*Admission, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("admission %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, a *Admission) (*Admission, error) {
	now := docstore.Now()
	id, err := r.store.Insert(ctx, Collection, docstore.Document{
		keyPatientID:      a.PatientID,
		keyPatientName:    a.PatientName,
		keyWardID:         a.WardID,
		keyWardName:       a.WardName,
		keyBedNumber:      a.BedNumber,
		keyReason:         a.Reason,
		keyAdmittedByID:   a.AdmittedByID,
		keyAdmittedByName: a.AdmittedByName,
		keyStatus:         StatusAdmitted,
		keyAdmittedAt:     docstore.FormatTime(a.AdmittedAt),
		keyDischargedAt:   nil,
		keyDischargeNotes: "",
		keyCreatedAt:      now,
		keyUpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("create admission: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Discharge(ctx context.Context, id string, at time.Time, notes string) (*Admission, error) {
	err := r.store.Update(ctx, Collection, id, docstore.Document{
		keyStatus:         StatusDischarged,
		keyDischargedAt:   docstore.FormatTime(at),
		keyDischargeNotes: notes,
		keyUpdatedAt:      docstore.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("discharge %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete admission %s: %w", id, err)
	}
	return nil
}

func fromDoc(d docstore.Document) *Admission {
	return &Admission{
		ID:             d.ID(),
		PatientID:      d.String(keyPatientID),
		PatientName:    d.String(keyPatientName),
		WardID:         d.String(keyWardID),
		WardName:       d.String(keyWardName),
		BedNumber:      d.String(keyBedNumber),
		Reason:         d.String(keyReason),
		AdmittedByID:   d.String(keyAdmittedByID),
		AdmittedByName: d.String(keyAdmittedByName),
		Status:         d.String(keyStatus),
		AdmittedAt:     d.Time(keyAdmittedAt),
		DischargedAt:   d.TimePtr(keyDischargedAt),
		DischargeNotes: d.String(keyDischargeNotes),
		CreatedAt:      d.Time(keyCreatedAt),
		UpdatedAt:      d.Time(keyUpdatedAt),
	}
}

func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}
