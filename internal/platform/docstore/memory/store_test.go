package memory

import (
	"context"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, New())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.Insert(ctx, "patients", docstore.Document{"allergies": []string{"Latex"}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, _ := s.Get(ctx, "patients", id)
	got["allergies"].([]any)[0] = "mutated"

	again, _ := s.Get(ctx, "patients", id)
	if again.Strings("allergies")[0] != "Latex" {
		t.Fatal("mutating a returned document changed the stored one")
	}
}

func TestStore_UnorderedFindKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx, "wards", docstore.Document{"name": n}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	docs, err := s.Find(ctx, "wards", docstore.Query{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 3 || docs[0].String("name") != "a" || docs[2].String("name") != "c" {
		t.Fatalf("unexpected order: %v", docs)
	}
}
