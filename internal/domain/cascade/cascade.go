// Package cascade keeps denormalized display fields in step with the
// records they were copied from. It listens on the change feed and rewrites
// patient names, staff names and invoice payment status wherever a
// dependent document holds a copy.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/admission"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// BedRenamer updates the patient name shown on occupied beds. Beds live
// inside ward documents, so the ward service owns the rewrite.
type BedRenamer interface {
	RenamePatient(ctx context.Context, patientID, name string) (int, error)
}

// copyRule says that collection holds a copy of a source name in nameKey,
// keyed by the source id in idKey.
type copyRule struct {
	collection string
	idKey      string
	nameKey    string
}

var patientCopies = []copyRule{
	{appointment.Collection, "patient_id", "patient_name"},
	{laborder.Collection, "patient_id", "patient_name"},
	{invoice.Collection, "patient_id", "patient_name"},
	{admission.Collection, "patient_id", "patient_name"},
}

var staffCopies = []copyRule{
	{appointment.Collection, "provider_id", "provider_name"},
	{laborder.Collection, "ordered_by_id", "ordered_by_name"},
	{admission.Collection, "admitted_by_id", "admitted_by_name"},
}

// Worker applies cascades. Writes should go through the observed store so
// websocket clients see the rewritten documents too.
type Worker struct {
	store   docstore.Store
	beds    BedRenamer
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func NewWorker(store docstore.Store, beds BedRenamer, logger zerolog.Logger, metrics *telemetry.Metrics) *Worker {
	return &Worker{
		store:   store,
		beds:    beds,
		logger:  logger.With().Str("component", "cascade").Logger(),
		metrics: metrics,
	}
}

// Run consumes sub until it is closed or ctx ends. A failed cascade is
// logged and the worker moves on; the next change to the source retries it.
func (w *Worker) Run(ctx context.Context, sub *changefeed.Subscription) {
	w.logger.Info().Msg("cascade worker started")
	defer w.logger.Info().Msg("cascade worker stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			if err := w.Apply(ctx, c); err != nil {
				w.logger.Error().Err(err).
					Str("collection", c.Collection).
					Str("id", c.ID).
					Msg("cascade failed")
			}
		}
	}
}

// Apply performs the cascade for one change. Changes to collections that
// nothing copies from are ignored.
func (w *Worker) Apply(ctx context.Context, c changefeed.Change) error {
	if c.Doc == nil {
		return nil
	}
	switch c.Collection {
	case patient.Collection:
		if c.Op != changefeed.OpUpdate || !c.Touched("first_name", "last_name", "full_name") {
			return nil
		}
		return w.renamePatient(ctx, c.ID, c.Doc.String("full_name"))
	case user.Collection:
		if c.Op != changefeed.OpUpdate || !c.Touched("name") {
			return nil
		}
		return w.rename(ctx, staffCopies, c.ID, c.Doc.String("name"))
	case invoice.Collection:
		if !c.Touched("status", "appointment_id", "lab_order_id") {
			return nil
		}
		return w.linkInvoice(ctx, c.ID, c.Doc)
	}
	return nil
}

func (w *Worker) renamePatient(ctx context.Context, id, name string) error {
	if err := w.rename(ctx, patientCopies, id, name); err != nil {
		return err
	}
	if w.beds == nil {
		return nil
	}
	n, err := w.beds.RenamePatient(ctx, id, name)
	if err != nil {
		return fmt.Errorf("rename patient on beds: %w", err)
	}
	for range n {
		w.metrics.CascadeUpdate("wards")
	}
	return nil
}

func (w *Worker) rename(ctx context.Context, rules []copyRule, id, name string) error {
	if name == "" {
		return nil
	}
	var errs []error
	for _, r := range rules {
		docs, err := w.store.Find(ctx, r.collection, docstore.Query{
			Where: []docstore.Filter{docstore.Eq(r.idKey, id)},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("find %s by %s: %w", r.collection, r.idKey, err))
			continue
		}
		for _, d := range docs {
			if d.String(r.nameKey) == name {
				continue
			}
			err := w.store.Update(ctx, r.collection, d.ID(), docstore.Document{r.nameKey: name})
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("update %s %s: %w", r.collection, d.ID(), err))
				continue
			}
			w.metrics.CascadeUpdate(r.collection)
		}
	}
	return errors.Join(errs...)
}

// linkInvoice stamps the invoice id and its status onto the appointment and
// lab order it bills.
func (w *Worker) linkInvoice(ctx context.Context, id string, inv docstore.Document) error {
	status := inv.String("status")
	var errs []error
	targets := []struct{ collection, key string }{
		{appointment.Collection, "appointment_id"},
		{laborder.Collection, "lab_order_id"},
	}
	for _, t := range targets {
		linked := inv.String(t.key)
		if linked == "" {
			continue
		}
		d, err := w.store.Get(ctx, t.collection, linked)
		if errors.Is(err, docstore.ErrNotFound) {
			w.logger.Warn().Str("invoice", id).Str(t.key, linked).Msg("linked record is gone")
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("get %s %s: %w", t.collection, linked, err))
			continue
		}
		if d.String("invoice_id") == id && d.String("payment_status") == status {
			continue
		}
		err = w.store.Update(ctx, t.collection, linked, docstore.Document{
			"invoice_id":     id,
			"payment_status": status,
		})
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("update %s %s: %w", t.collection, linked, err))
			continue
		}
		w.metrics.CascadeUpdate(t.collection)
	}
	return errors.Join(errs...)
}
