package laborder

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyPatientID     = "patient_id"
	keyPatientName   = "patient_name"
	keyOrderedByID   = "ordered_by_id"
	keyOrderedByName = "ordered_by_name"
	keyTests         = "tests"
	keyPriority      = "priority"
	keyStatus        = "status"
	keyResults       = "results"
	keyNotes         = "notes"
	keyInvoiceID     = "invoice_id"
	keyPaymentStatus = "payment_status"
	keyCreatedAt     = "created_at"
	keyUpdatedAt     = "updated_at"
)

var Indexes = []string{keyPatientID, keyStatus, keyPriority, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*LabOrder, int, error) {
	q := docstore.Query{OrderBy: keyCreatedAt, Desc: true}
	if f.PatientID != "" {
		q.Where = append(q.Where, docstore.Eq(keyPatientID, f.PatientID))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq(keyStatus, f.Status))
	}
	if f.Priority != "" {
		q.Where = append(q.Where, docstore.Eq(keyPriority, f.Priority))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count lab orders: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list lab orders: %w", err)
	}
	out := make([]*LabOrder, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*LabOrder, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("lab order %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, o *LabOrder) (*LabOrder, error) {
	now := docstore.Now()
	id, err := r.store.Insert(ctx, Collection, docstore.Document{
		keyPatientID:     o.PatientID,
		keyPatientName:   o.PatientName,
		keyOrderedByID:   o.OrderedByID,
		keyOrderedByName: o.OrderedByName,
		keyTests:         testsToDocs(o.Tests),
		keyPriority:      o.Priority,
		keyStatus:        o.Status,
		keyResults:       []any{},
		keyNotes:         o.Notes,
		keyInvoiceID:     "",
		keyPaymentStatus: "",
		keyCreatedAt:     now,
		keyUpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("create lab order: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Update(ctx context.Context, id string, req *UpdateRequest) (*LabOrder, error) {
	fields := docstore.Document{keyUpdatedAt: docstore.Now()}
	if req.Tests != nil {
		fields[keyTests] = testsToDocs(*req.Tests)
	}
	if req.Priority != nil {
		fields[keyPriority] = *req.Priority
	}
	if req.Status != nil {
		fields[keyStatus] = *req.Status
	}
	if req.Notes != nil {
		fields[keyNotes] = *req.Notes
	}
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update lab order %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) SetResults(ctx context.Context, id string, results []Result, status string) (*LabOrder, error) {
	docs := make([]any, 0, len(results))
	for _, res := range results {
		docs = append(docs, docstore.Document{
			"test_code":       res.TestCode,
			"value":           res.Value,
			"unit":            res.Unit,
			"reference_range": res.ReferenceRange,
			"flag":            res.Flag,
		})
	}
	err := r.store.Update(ctx, Collection, id, docstore.Document{
		keyResults:   docs,
		keyStatus:    status,
		keyUpdatedAt: docstore.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record results for %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete lab order %s: %w", id, err)
	}
	return nil
}

func testsToDocs(tests []Test) []any {
	out := make([]any, 0, len(tests))
	for _, t := range tests {
		out = append(out, docstore.Document{"code": t.Code, "name": t.Name, "price": t.Price})
	}
	return out
}

func fromDoc(d docstore.Document) *LabOrder {
	o := &LabOrder{
		ID:            d.ID(),
		PatientID:     d.String(keyPatientID),
		PatientName:   d.String(keyPatientName),
		OrderedByID:   d.String(keyOrderedByID),
		OrderedByName: d.String(keyOrderedByName),
		Tests:         []Test{},
		Priority:      d.String(keyPriority),
		Status:        d.String(keyStatus),
		Results:       []Result{},
		Notes:         d.String(keyNotes),
		InvoiceID:     d.String(keyInvoiceID),
		PaymentStatus: d.String(keyPaymentStatus),
		CreatedAt:     d.Time(keyCreatedAt),
		UpdatedAt:     d.Time(keyUpdatedAt),
	}
	for _, t := range d.Docs(keyTests) {
		o.Tests = append(o.Tests, Test{Code: t.String("code"), Name: t.String("name"), Price: t.Float("price")})
	}
	for _, res := range d.Docs(keyResults) {
		o.Results = append(o.Results, Result{
			TestCode:       res.String("test_code"),
			Value:          res.String("value"),
			Unit:           res.String("unit"),
			ReferenceRange: res.String("reference_range"),
			Flag:           res.String("flag"),
		})
	}
	return o
}

func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}
