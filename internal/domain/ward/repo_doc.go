package ward

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyName      = "name"
	keyType      = "type"
	keyFloor     = "floor"
	keyBeds      = "beds"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"

	// Bed sub-document keys. The cascade worker rewrites bedPatientName.
	bedNumber      = "number"
	bedStatus      = "status"
	bedPatientID   = "patient_id"
	bedPatientName = "patient_name"
)

var Indexes = []string{keyType, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*Ward, int, error) {
	q := docstore.Query{OrderBy: keyName}
	if f.Type != "" {
		q.Where = append(q.Where, docstore.Eq(keyType, f.Type))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count wards: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list wards: %w", err)
	}
	out := make([]*Ward, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*Ward, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("ward %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, w *Ward) (*Ward, error) {
	now := docstore.Now()
	id, err := r.store.Insert(ctx, Collection, docstore.Document{
		keyName:      w.Name,
		keyType:      w.Type,
		keyFloor:     w.Floor,
		keyBeds:      BedsToDocs(w.Beds),
		keyCreatedAt: now,
		keyUpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create ward: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Update(ctx context.Context, id string, req *UpdateRequest) (*Ward, error) {
	fields := docstore.Document{keyUpdatedAt: docstore.Now()}
	if req.Name != nil {
		fields[keyName] = *req.Name
	}
	if req.Type != nil {
		fields[keyType] = *req.Type
	}
	if req.Floor != nil {
		fields[keyFloor] = *req.Floor
	}
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update ward %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) SetBeds(ctx context.Context, id string, beds []Bed) (*Ward, error) {
	err := r.store.Update(ctx, Collection, id, docstore.Document{
		keyBeds:      BedsToDocs(beds),
		keyUpdatedAt: docstore.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("update beds of ward %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete ward %s: %w", id, err)
	}
	return nil
}

// BedsToDocs encodes beds in their persisted shape.
func BedsToDocs(beds []Bed) []any {
	out := make([]any, 0, len(beds))
	for _, b := range beds {
		out = append(out, docstore.Document{
			bedNumber:      b.Number,
			bedStatus:      b.Status,
			bedPatientID:   b.PatientID,
			bedPatientName: b.PatientName,
		})
	}
	return out
}

// BedsFromDoc decodes the bed array of a stored ward.
func BedsFromDoc(d docstore.Document) []Bed {
	beds := []Bed{}
	for _, b := range d.Docs(keyBeds) {
		beds = append(beds, Bed{
			Number:      b.String(bedNumber),
			Status:      b.String(bedStatus),
			PatientID:   b.String(bedPatientID),
			PatientName: b.String(bedPatientName),
		})
	}
	return beds
}

func fromDoc(d docstore.Document) *Ward {
	return &Ward{
		ID:        d.ID(),
		Name:      d.String(keyName),
		Type:      d.String(keyType),
		Floor:     d.String(keyFloor),
		Beds:      BedsFromDoc(d),
		CreatedAt: d.Time(keyCreatedAt),
		UpdatedAt: d.Time(keyUpdatedAt),
	}
}

func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}
