package invoice

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyPatientID     = "patient_id"
	keyPatientName   = "patient_name"
	keyAppointmentID = "appointment_id"
	keyLabOrderID    = "lab_order_id"
	keyItems         = "items"
	keyTotalAmount   = "total_amount"
	keyAmountPaid    = "amount_paid"
	keyStatus        = "status"
	keyPaymentMethod = "payment_method"
	keyDueDate       = "due_date"
	keyCreatedAt     = "created_at"
	keyUpdatedAt     = "updated_at"
)

var Indexes = []string{keyPatientID, keyStatus, keyAppointmentID, keyLabOrderID, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*Invoice, int, error) {
	q := docstore.Query{OrderBy: keyCreatedAt, Desc: true}
	if f.PatientID != "" {
		q.Where = append(q.Where, docstore.Eq(keyPatientID, f.PatientID))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq(keyStatus, f.Status))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]*Invoice, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*Invoice, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, err)
	}
	return FromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	now := docstore.Now()
	doc := billingFields(inv)
	doc[keyPatientID] = inv.PatientID
	doc[keyPatientName] = inv.PatientName
	doc[keyAppointmentID] = inv.AppointmentID
	doc[keyLabOrderID] = inv.LabOrderID
	doc[keyCreatedAt] = now
	doc[keyUpdatedAt] = now
	id, err := r.store.Insert(ctx, Collection, doc)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Save(ctx context.Context, id string, inv *Invoice) (*Invoice, error) {
	fields := billingFields(inv)
	fields[keyUpdatedAt] = docstore.Now()
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update invoice %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	return nil
}

func billingFields(inv *Invoice) docstore.Document {
	items := make([]any, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, docstore.Document{
			"description": it.Description,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice,
		})
	}
	return docstore.Document{
		keyItems:         items,
		keyTotalAmount:   inv.TotalAmount,
		keyAmountPaid:    inv.AmountPaid,
		keyStatus:        inv.Status,
		keyPaymentMethod: inv.PaymentMethod,
		keyDueDate:       inv.DueDate,
	}
}

// FromDoc decodes a stored invoice. The cascade worker uses it to read
// change events.
func FromDoc(d docstore.Document) *Invoice {
	inv := &Invoice{
		ID:            d.ID(),
		PatientID:     d.String(keyPatientID),
		PatientName:   d.String(keyPatientName),
		AppointmentID: d.String(keyAppointmentID),
		LabOrderID:    d.String(keyLabOrderID),
		Items:         []Item{},
		TotalAmount:   d.Float(keyTotalAmount),
		AmountPaid:    d.Float(keyAmountPaid),
		Status:        d.String(keyStatus),
		PaymentMethod: d.String(keyPaymentMethod),
		DueDate:       d.String(keyDueDate),
		CreatedAt:     d.Time(keyCreatedAt),
		UpdatedAt:     d.Time(keyUpdatedAt),
	}
	for _, it := range d.Docs(keyItems) {
		inv.Items = append(inv.Items, Item{
			Description: it.String("description"),
			Quantity:    it.Float("quantity"),
			UnitPrice:   it.Float("unit_price"),
		})
	}
	return inv
}

func Present(d docstore.Document) (any, error) {
	return FromDoc(d), nil
}
