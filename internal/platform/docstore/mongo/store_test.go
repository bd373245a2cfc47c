package mongo

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/storetest"
)

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter([]docstore.Filter{
		docstore.Eq("id", "abc"),
		docstore.In("status", "Scheduled", "Confirmed"),
		docstore.Contains("patient_name", "a.b"),
	})
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}
	if f["_id"] != "abc" {
		t.Errorf("expected id mapped to _id, got %v", f)
	}
	in, ok := f["status"].(bson.M)
	if !ok || len(in["$in"].(bson.A)) != 2 {
		t.Errorf("expected $in with 2 values, got %v", f["status"])
	}
	re, ok := f["patient_name"].(bson.Regex)
	if !ok || re.Pattern != `a\.b` || re.Options != "i" {
		t.Errorf("expected quoted case-insensitive regex, got %v", f["patient_name"])
	}
}

func TestFromRaw(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":       "65f0c0ffee",
		"total":     75.0,
		"allergies": bson.A{"Penicillin", "Peanuts"},
		"address":   bson.M{"city": "Lyon"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	doc, err := fromRaw(raw)
	if err != nil {
		t.Fatalf("fromRaw: %v", err)
	}
	if doc.ID() != "65f0c0ffee" {
		t.Errorf("expected id from _id, got %v", doc)
	}
	if _, ok := doc["_id"]; ok {
		t.Error("expected _id to be removed")
	}
	if doc.Float("total") != 75 {
		t.Errorf("expected 75, got %v", doc["total"])
	}
	if a := doc.Strings("allergies"); len(a) != 2 || a[1] != "Peanuts" {
		t.Errorf("unexpected allergies %v", a)
	}
	if doc.Doc("address").String("city") != "Lyon" {
		t.Errorf("unexpected address %v", doc["address"])
	}
}

// TestStore_Contract runs against a real deployment when one is configured.
func TestStore_Contract(t *testing.T) {
	uri := os.Getenv("CLINICDESK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CLINICDESK_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, uri, "clinicdesk_storetest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close(ctx)
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	storetest.Run(t, s)
}
