package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fakeAPI serves /api/items from a map, paging like the real handlers.
type fakeAPI struct {
	mu    sync.Mutex
	items []item
	auth  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")

	id := ""
	if len(r.URL.Path) > len("/api/items/") {
		id = r.URL.Path[len("/api/items/"):]
	}
	switch {
	case r.Method == http.MethodGet && id == "":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var matched []item
		for _, it := range f.items {
			if q := r.URL.Query().Get("name"); q == "" || q == it.Name {
				matched = append(matched, it)
			}
		}
		end := min(offset+limit, len(matched))
		_ = json.NewEncoder(w).Encode(pagination.NewResponse(matched[min(offset, end):end], len(matched), pagination.Params{Limit: limit, Offset: offset}))
	case r.Method == http.MethodGet:
		for _, it := range f.items {
			if it.ID == id {
				_ = json.NewEncoder(w).Encode(it)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"item not found"}`))
	case r.Method == http.MethodPost:
		var it item
		_ = json.NewDecoder(r.Body).Decode(&it)
		if it.Name == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"validation failed","errors":{"name":["is required"]}}`))
			return
		}
		it.ID = strconv.Itoa(len(f.items) + 1)
		f.items = append(f.items, it)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(it)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestResource_CRUD(t *testing.T) {
	api := &fakeAPI{}
	items := NewResource[item](newTestClient(t, api), "/api/items")
	ctx := context.Background()

	created, err := items.Create(ctx, map[string]string{"name": "gauze"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Name != "gauze" {
		t.Errorf("unexpected create result %+v", created)
	}
	if api.auth != "Bearer tok" {
		t.Errorf("authorization header = %q", api.auth)
	}

	got, err := items.Get(ctx, created.ID)
	if err != nil || got.Name != "gauze" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := items.Delete(ctx, created.ID); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestResource_ErrorBody(t *testing.T) {
	items := NewResource[item](newTestClient(t, &fakeAPI{}), "api/items/")
	ctx := context.Background()

	_, err := items.Get(ctx, "missing")
	if StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if err.(*Error).Message != "item not found" {
		t.Errorf("message = %q", err.(*Error).Message)
	}

	_, err = items.Create(ctx, map[string]string{})
	apiErr, ok := err.(*Error)
	if !ok || apiErr.Status != http.StatusBadRequest || len(apiErr.Errors["name"]) != 1 {
		t.Errorf("expected field error, got %v", err)
	}
}

func TestResource_ListAllFollowsPages(t *testing.T) {
	api := &fakeAPI{}
	for i := range pagination.MaxLimit + 20 {
		name := "even"
		if i%2 == 1 {
			name = "odd"
		}
		api.items = append(api.items, item{ID: strconv.Itoa(i), Name: name})
	}
	items := NewResource[item](newTestClient(t, api), "/api/items")

	all, err := items.ListAll(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != pagination.MaxLimit+20 {
		t.Errorf("got %d items", len(all))
	}

	odd, err := items.ListAll(context.Background(), url.Values{"name": {"odd"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(odd) != (pagination.MaxLimit+20)/2 {
		t.Errorf("filter not applied: %d items", len(odd))
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Error("expected error for non-http scheme")
	}
}

func TestWatch_ReceivesBroadcasts(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop(), nil)
	e := echo.New()
	websocket.NewHandler(hub).RegisterRoutes(e.Group("/api"))
	c := newTestClient(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.Watch(ctx, "patients")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("patients") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast("patients", websocket.Event{Type: "update", Topic: "patients", ResourceID: "p1"})

	select {
	case ev := <-events:
		if ev.ResourceID != "p1" || ev.Type != "update" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestClient_Activity(t *testing.T) {
	var query url.Values
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]activity.Entry{
			{ID: "a1", ActorRole: "nurse", Action: "admitted patient", EntityType: "admission"},
		})
	})
	c := newTestClient(t, h)

	entries, err := c.Activity(context.Background(), ActivityFilter{Limit: 5, Role: "nurse"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "admitted patient" {
		t.Errorf("unexpected entries %+v", entries)
	}
	if query.Get("limit") != "5" || query.Get("role") != "nurse" || query.Has("entityType") {
		t.Errorf("unexpected query %v", query)
	}
}
