// Package storetest holds the behaviour every docstore driver must share.
// Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// Run exercises s against the docstore.Store contract. Each subtest uses its
// own collection so drivers backed by a shared database stay isolated.
func Run(t *testing.T, s docstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("InsertAssignsID", func(t *testing.T) {
		id, err := s.Insert(ctx, "st_insert", docstore.Document{"id": "client-chosen", "name": "Ada"})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id == "" || id == "client-chosen" {
			t.Fatalf("expected store-assigned id, got %q", id)
		}
		got, err := s.Get(ctx, "st_insert", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID() != id {
			t.Errorf("expected id %q, got %q", id, got.ID())
		}
		if got.String("name") != "Ada" {
			t.Errorf("expected name Ada, got %v", got["name"])
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "st_missing", "nope")
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ArraysKeepOrder", func(t *testing.T) {
		id, err := s.Insert(ctx, "st_arrays", docstore.Document{"allergies": []string{"Penicillin", "Peanuts"}})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := s.Get(ctx, "st_arrays", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		a := got.Strings("allergies")
		if len(a) != 2 || a[0] != "Penicillin" || a[1] != "Peanuts" {
			t.Errorf("expected [Penicillin Peanuts], got %v", a)
		}
	})

	t.Run("UpdateReplacesNested", func(t *testing.T) {
		id, err := s.Insert(ctx, "st_update", docstore.Document{
			"name":    "Ada",
			"status":  "Active",
			"address": map[string]any{"city": "Paris", "street": "Rue 1"},
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.Update(ctx, "st_update", id, docstore.Document{
			"status":  "Inactive",
			"address": map[string]any{"city": "Lyon"},
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := s.Get(ctx, "st_update", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.String("name") != "Ada" {
			t.Errorf("untouched key changed: %v", got["name"])
		}
		if got.String("status") != "Inactive" {
			t.Errorf("expected status Inactive, got %v", got["status"])
		}
		addr := got.Doc("address")
		if addr.String("city") != "Lyon" {
			t.Errorf("expected city Lyon, got %v", addr["city"])
		}
		if _, ok := addr["street"]; ok {
			t.Errorf("expected nested object to be replaced, street survived: %v", addr)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := s.Update(ctx, "st_update_missing", "nope", docstore.Document{"a": 1})
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutUpserts", func(t *testing.T) {
		if err := s.Put(ctx, "st_put", "app", docstore.Document{"currency": "USD"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ctx, "st_put", "app", docstore.Document{"currency": "EUR"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, "st_put", "app")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.String("currency") != "EUR" {
			t.Errorf("expected EUR, got %v", got["currency"])
		}
		n, err := s.Count(ctx, "st_put", docstore.Query{})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 document, got %d", n)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		id, err := s.Insert(ctx, "st_delete", docstore.Document{"a": "b"})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.Delete(ctx, "st_delete", id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, "st_delete", id); !errors.Is(err, docstore.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, "st_delete", id); !errors.Is(err, docstore.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("FindFilters", func(t *testing.T) {
		rows := []docstore.Document{
			{"provider_id": "p1", "date": "2024-05-01", "time": "09:00", "status": "Scheduled", "patient_name": "Ada Lovelace"},
			{"provider_id": "p1", "date": "2024-05-01", "time": "10:00", "status": "Cancelled", "patient_name": "Alan Turing"},
			{"provider_id": "p2", "date": "2024-05-01", "time": "09:00", "status": "Confirmed", "patient_name": "Grace Hopper"},
			{"provider_id": "p1", "date": "2024-05-02", "time": "09:00", "status": "Arrived", "patient_name": "Ada Byron"},
		}
		for _, r := range rows {
			if _, err := s.Insert(ctx, "st_find", r); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		got, err := s.Find(ctx, "st_find", docstore.Query{Where: []docstore.Filter{
			docstore.Eq("provider_id", "p1"),
			docstore.In("status", "Scheduled", "Confirmed", "Arrived"),
		}, OrderBy: "date"})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 active p1 appointments, got %d", len(got))
		}
		if got[0].String("date") != "2024-05-01" || got[1].String("date") != "2024-05-02" {
			t.Errorf("expected ascending date order, got %v then %v", got[0]["date"], got[1]["date"])
		}

		got, err = s.Find(ctx, "st_find", docstore.Query{Where: []docstore.Filter{
			docstore.Contains("patient_name", "ADA"),
		}})
		if err != nil {
			t.Fatalf("Find contains: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 case-insensitive matches, got %d", len(got))
		}

		got, err = s.Find(ctx, "st_find", docstore.Query{OrderBy: "time", Desc: true, Limit: 1, Offset: 0})
		if err != nil {
			t.Fatalf("Find paged: %v", err)
		}
		if len(got) != 1 || got[0].String("time") != "10:00" {
			t.Errorf("expected the 10:00 row first in descending order, got %v", got)
		}

		n, err := s.Count(ctx, "st_find", docstore.Query{Where: []docstore.Filter{docstore.Eq("date", "2024-05-01")}})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 rows on 2024-05-01, got %d", n)
		}
	})

	t.Run("NumbersRoundTrip", func(t *testing.T) {
		id, err := s.Insert(ctx, "st_numbers", docstore.Document{"total_amount": 75, "amount_paid": 0})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.Update(ctx, "st_numbers", id, docstore.Document{"amount_paid": 75.5}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := s.Get(ctx, "st_numbers", id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Float("total_amount") != 75 || got.Float("amount_paid") != 75.5 {
			t.Errorf("unexpected numbers: %v", got)
		}
	})

	t.Run("RejectsBadField", func(t *testing.T) {
		_, err := s.Find(ctx, "st_find", docstore.Query{Where: []docstore.Filter{docstore.Eq("x'; drop", 1)}})
		if !errors.Is(err, docstore.ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField, got %v", err)
		}
	})
}
