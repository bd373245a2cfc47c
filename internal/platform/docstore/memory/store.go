// Package memory is an in-process docstore driver for tests and local
// development. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// collection keeps insertion order so unordered queries are stable.
type collection struct {
	order []string
	docs  map[string]docstore.Document
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Insert(_ context.Context, name string, doc docstore.Document) (string, error) {
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	norm[docstore.IDField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	c.docs[id] = norm
	c.order = append(c.order, id)
	return id, nil
}

func (s *Store) Get(_ context.Context, name, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return docstore.Clone(doc), nil
}

func (s *Store) Update(_ context.Context, name, id string, fields docstore.Document) error {
	norm, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return docstore.ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	c.docs[id] = docstore.Merge(doc, norm)
	return nil
}

func (s *Store) Put(_ context.Context, name, id string, doc docstore.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: id is required", name)
	}
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}
	norm[docstore.IDField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = norm
	return nil
}

func (s *Store) Delete(_ context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return docstore.ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Find(_ context.Context, name string, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := s.snapshot(name)
	s.mu.RUnlock()
	return docstore.Apply(all, q), nil
}

func (s *Store) Count(_ context.Context, name string, q docstore.Query) (int, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return 0, err
	}
	s.mu.RLock()
	all := s.snapshot(name)
	s.mu.RUnlock()
	q.Limit, q.Offset = 0, 0
	return len(docstore.Apply(all, q)), nil
}

// snapshot must be called with the read lock held.
func (s *Store) snapshot(name string) []docstore.Document {
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]docstore.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, docstore.Clone(c.docs[id]))
	}
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }
