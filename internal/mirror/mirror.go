// Package mirror keeps an in-memory, most-recent-first copy of one entity
// collection for Go consumers of the API. A Container loads through a
// Source, applies its own mutations, and follows the server's change events
// so the copy converges on what the server holds.
package mirror

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/client"
)

// Source is the remote side of a Container. *client.Resource satisfies it.
type Source[T any] interface {
	ListAll(ctx context.Context, filters url.Values) ([]T, error)
	Create(ctx context.Context, req any) (T, error)
	Update(ctx context.Context, id string, patch any) (T, error)
	Delete(ctx context.Context, id string) error
}

// Container mirrors one collection. Operations are serialized; readers get
// copies and never block on a network call.
type Container[T any] struct {
	src     Source[T]
	topic   string
	idOf    func(T) string
	filters url.Values
	logger  zerolog.Logger

	op sync.Mutex // one writer at a time

	mu      sync.RWMutex
	items   []T
	loading bool
	err     error

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]T)
}

type Option[T any] func(*Container[T])

// WithFilters restricts FetchAll to matching records, e.g. status=Active.
func WithFilters[T any](filters url.Values) Option[T] {
	return func(c *Container[T]) { c.filters = filters }
}

func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(c *Container[T]) { c.logger = logger }
}

// New returns an empty container for topic, the collection name change
// events carry. idOf extracts the record id.
func New[T any](src Source[T], topic string, idOf func(T) string, opts ...Option[T]) *Container[T] {
	c := &Container[T]{
		src:    src,
		topic:  topic,
		idOf:   idOf,
		logger: zerolog.Nop(),
		subs:   make(map[int]func([]T)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "mirror").Str("topic", topic).Logger()
	return c
}

func (c *Container[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *Container[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err is the last failure, cleared by the next successful operation.
func (c *Container[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Subscribe calls fn with a copy of the items after every change. The
// returned func detaches fn.
func (c *Container[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// FetchAll replaces the items with the server's list.
func (c *Container[T]) FetchAll(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.fetchLocked(ctx)
}

func (c *Container[T]) fetchLocked(ctx context.Context) error {
	c.set(func() { c.loading = true })
	items, err := c.src.ListAll(ctx, c.filters)
	if err != nil {
		c.set(func() {
			c.loading = false
			c.err = err
		})
		return err
	}
	c.set(func() {
		c.items = items
		c.loading = false
		c.err = nil
	})
	return nil
}

// Create sends req and puts the stored record first.
func (c *Container[T]) Create(ctx context.Context, req any) (T, error) {
	c.op.Lock()
	defer c.op.Unlock()
	created, err := c.src.Create(ctx, req)
	if err != nil {
		c.fail(ctx, err)
		var zero T
		return zero, err
	}
	c.set(func() {
		c.items = c.upsertFront(c.items, created)
		c.err = nil
	})
	return created, nil
}

// Update sends patch and replaces the record with the server's copy.
func (c *Container[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	c.op.Lock()
	defer c.op.Unlock()
	updated, err := c.src.Update(ctx, id, patch)
	if err != nil {
		c.fail(ctx, err)
		var zero T
		return zero, err
	}
	c.set(func() {
		c.items = c.replace(c.items, updated)
		c.err = nil
	})
	return updated, nil
}

// Remove drops the record locally first; a failed delete is undone by the
// reconciling fetch.
func (c *Container[T]) Remove(ctx context.Context, id string) error {
	c.op.Lock()
	defer c.op.Unlock()
	c.set(func() { c.items = c.without(c.items, id) })
	if err := c.src.Delete(ctx, id); err != nil {
		c.fail(ctx, err)
		return err
	}
	c.set(func() { c.err = nil })
	return nil
}

// Sync applies change events until events closes or ctx ends. Events are
// authoritative over local state.
func (c *Container[T]) Sync(ctx context.Context, events <-chan client.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Topic != c.topic {
				continue
			}
			c.op.Lock()
			c.apply(ev)
			c.op.Unlock()
		}
	}
}

func (c *Container[T]) apply(ev client.Event) {
	if ev.Type == "delete" {
		c.set(func() { c.items = c.without(c.items, ev.ResourceID) })
		return
	}
	var rec T
	if err := json.Unmarshal(ev.Data, &rec); err != nil {
		c.logger.Warn().Err(err).Str("id", ev.ResourceID).Msg("undecodable change event")
		return
	}
	c.set(func() {
		if ev.Type == "create" {
			c.items = c.upsertFront(c.items, rec)
			return
		}
		c.items = c.replace(c.items, rec)
	})
}

// fail records err and reconciles with the server. The caller holds op.
func (c *Container[T]) fail(ctx context.Context, err error) {
	c.set(func() { c.err = err })
	if ferr := c.reconcile(ctx); ferr != nil {
		c.logger.Warn().Err(ferr).Msg("reconciling fetch failed")
	}
}

func (c *Container[T]) reconcile(ctx context.Context) error {
	items, err := c.src.ListAll(context.WithoutCancel(ctx), c.filters)
	if err != nil {
		return err
	}
	c.set(func() { c.items = items })
	return nil
}

// set mutates state under the write lock and then notifies subscribers.
func (c *Container[T]) set(fn func()) {
	c.mu.Lock()
	fn()
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.subMu.Lock()
	fns := make([]func([]T), 0, len(c.subs))
	for _, f := range c.subs {
		fns = append(fns, f)
	}
	c.subMu.Unlock()
	for _, f := range fns {
		f(slices.Clone(snapshot))
	}
}

func (c *Container[T]) upsertFront(items []T, rec T) []T {
	id := c.idOf(rec)
	out := make([]T, 0, len(items)+1)
	out = append(out, rec)
	for _, it := range items {
		if c.idOf(it) != id {
			out = append(out, it)
		}
	}
	return out
}

// replace swaps the record in place, or prepends it when it is new to us.
func (c *Container[T]) replace(items []T, rec T) []T {
	id := c.idOf(rec)
	for i, it := range items {
		if c.idOf(it) == id {
			out := slices.Clone(items)
			out[i] = rec
			return out
		}
	}
	return c.upsertFront(items, rec)
}

func (c *Container[T]) without(items []T, id string) []T {
	return slices.DeleteFunc(slices.Clone(items), func(it T) bool { return c.idOf(it) == id })
}
