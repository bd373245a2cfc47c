package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/client"
)

type rec struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func recID(r rec) string { return r.ID }

// fakeSource stores records server-side; fail makes the next call error.
type fakeSource struct {
	mu     sync.Mutex
	stored []rec
	fail   error
	lists  int
	seq    int
}

func (f *fakeSource) takeFail() error {
	err := f.fail
	f.fail = nil
	return err
}

func (f *fakeSource) ListAll(_ context.Context, filters url.Values) ([]rec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if err := f.takeFail(); err != nil {
		return nil, err
	}
	var out []rec
	for _, r := range f.stored {
		if s := filters.Get("status"); s == "" || s == r.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Create(_ context.Context, req any) (rec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFail(); err != nil {
		return rec{}, err
	}
	f.seq++
	r := rec{ID: "n" + strconv.Itoa(f.seq), Status: req.(string)}
	f.stored = append([]rec{r}, f.stored...)
	return r, nil
}

func (f *fakeSource) Update(_ context.Context, id string, patch any) (rec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFail(); err != nil {
		return rec{}, err
	}
	for i := range f.stored {
		if f.stored[i].ID == id {
			f.stored[i].Status = patch.(string)
			return f.stored[i], nil
		}
	}
	return rec{}, &client.Error{Status: 404, Message: "not found"}
}

func (f *fakeSource) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFail(); err != nil {
		return err
	}
	for i := range f.stored {
		if f.stored[i].ID == id {
			f.stored = append(f.stored[:i], f.stored[i+1:]...)
			return nil
		}
	}
	return &client.Error{Status: 404, Message: "not found"}
}

func ids(items []rec) string {
	s := ""
	for _, it := range items {
		s += it.ID + ","
	}
	return s
}

func seeded() *fakeSource {
	return &fakeSource{stored: []rec{{"a", "Active"}, {"b", "Inactive"}, {"c", "Active"}}}
}

func TestContainer_FetchAndFilters(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID, WithFilters[rec](url.Values{"status": {"Active"}}))
	if err := c.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Items()); got != "a,c," {
		t.Errorf("items = %s", got)
	}
	if c.Loading() || c.Err() != nil {
		t.Errorf("loading=%v err=%v", c.Loading(), c.Err())
	}
}

func TestContainer_FetchFailureKeepsItems(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID)
	_ = c.FetchAll(context.Background())

	src.fail = errors.New("network down")
	if err := c.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Err() == nil || c.Err().Error() != "network down" {
		t.Errorf("err = %v", c.Err())
	}
	if len(c.Items()) != 3 || c.Loading() {
		t.Errorf("items=%d loading=%v", len(c.Items()), c.Loading())
	}
}

func TestContainer_CreatePrependsAndUpdateReplaces(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID)
	ctx := context.Background()
	_ = c.FetchAll(ctx)

	created, err := c.Create(ctx, "Active")
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Items()); got != created.ID+",a,b,c," {
		t.Errorf("after create: %s", got)
	}

	if _, err := c.Update(ctx, "b", "Active"); err != nil {
		t.Fatal(err)
	}
	items := c.Items()
	if items[2].ID != "b" || items[2].Status != "Active" {
		t.Errorf("update not applied in place: %+v", items)
	}
}

func TestContainer_RemoveRollsBackOnFailure(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID)
	ctx := context.Background()
	_ = c.FetchAll(ctx)

	var seen []string
	unsubscribe := c.Subscribe(func(items []rec) { seen = append(seen, ids(items)) })
	defer unsubscribe()

	src.fail = errors.New("forbidden")
	if err := c.Remove(ctx, "b"); err == nil {
		t.Fatal("expected error")
	}
	if got := ids(c.Items()); got != "a,b,c," {
		t.Errorf("remove not rolled back: %s", got)
	}
	if c.Err() == nil {
		t.Error("failure not recorded")
	}
	if len(seen) == 0 || seen[0] != "a,c," {
		t.Errorf("optimistic removal not published first: %v", seen)
	}

	if err := c.Remove(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Items()); got != "a,c," || c.Err() != nil {
		t.Errorf("after remove: %s err=%v", got, c.Err())
	}
}

func TestContainer_FailedMutationReconciles(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID)
	ctx := context.Background()
	_ = c.FetchAll(ctx)
	// Someone else deleted c on the server.
	src.stored = src.stored[:2]

	if _, err := c.Update(ctx, "c", "Inactive"); client.StatusOf(err) != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
	if got := ids(c.Items()); got != "a,b," {
		t.Errorf("not reconciled: %s", got)
	}
}

func TestContainer_Sync(t *testing.T) {
	src := seeded()
	c := New[rec](src, "patients", recID)
	ctx := context.Background()
	_ = c.FetchAll(ctx)

	data := func(r rec) json.RawMessage {
		b, _ := json.Marshal(r)
		return b
	}
	events := make(chan client.Event, 8)
	events <- client.Event{Type: "create", Topic: "patients", ResourceID: "z", Data: data(rec{"z", "Active"})}
	events <- client.Event{Type: "update", Topic: "patients", ResourceID: "a", Data: data(rec{"a", "Inactive"})}
	events <- client.Event{Type: "delete", Topic: "patients", ResourceID: "c"}
	events <- client.Event{Type: "delete", Topic: "invoices", ResourceID: "b"}
	events <- client.Event{Type: "create", Topic: "patients", ResourceID: "z", Data: data(rec{"z", "Inactive"})}
	close(events)

	c.Sync(ctx, events)

	items := c.Items()
	if got := ids(items); got != "z,a,b," {
		t.Fatalf("after sync: %s", got)
	}
	if items[0].Status != "Inactive" || items[1].Status != "Inactive" {
		t.Errorf("event payload not applied: %+v", items)
	}
}

func TestContainer_ItemsAreCopies(t *testing.T) {
	c := New[rec](seeded(), "patients", recID)
	_ = c.FetchAll(context.Background())
	items := c.Items()
	items[0].ID = "mutated"
	if c.Items()[0].ID != "a" {
		t.Error("caller mutation leaked into the container")
	}
}
