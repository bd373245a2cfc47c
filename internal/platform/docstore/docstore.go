// Package docstore is the persistent store behind every clinic entity: one
// collection of schemaless documents per entity type, keyed by an opaque id
// that the store assigns. Drivers live in subpackages (memory, mongo,
// postgres, sqlite) and all of them honour the same Store contract.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidField = errors.New("invalid field name")
)

// IDField is the key under which every returned document carries its id.
const IDField = "id"

// TimeLayout is fixed width so that timestamps stored as strings sort
// chronologically in every driver.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Document is a persisted record. Values are limited to what encoding/json
// produces when decoding into interface{}: string, float64, bool, nil,
// []any and map[string]any.
type Document map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpContains Op = "contains" // case-insensitive substring on string fields
)

// Filter restricts a query on one top-level field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

func In(field string, values ...any) Filter { return Filter{Field: field, Op: OpIn, Value: values} }

func Contains(field, substr string) Filter {
	return Filter{Field: field, Op: OpContains, Value: substr}
}

// Query selects documents in one collection. An empty OrderBy means
// insertion order is not guaranteed.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Store is the contract every driver implements.
type Store interface {
	// Insert writes a new document and returns the id the store assigned.
	// Any "id" key in doc is ignored.
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	// Get returns ErrNotFound when the id does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges top-level keys into an existing document. A nested
	// object in fields replaces the stored one wholesale.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Put creates or replaces the document with the given id.
	Put(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, q Query) (int, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Migrator is implemented by drivers that need schema or index setup.
type Migrator interface {
	EnsureCollections(ctx context.Context, collections []Collection) error
}

// Collection names a collection and the fields worth indexing.
type Collection struct {
	Name    string
	Indexes []string
}

var fieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateField rejects field names that cannot be safely embedded in a
// driver query (JSON paths, column expressions).
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// ValidateQuery checks every field a query references.
func ValidateQuery(q Query) error {
	for _, f := range q.Where {
		if err := ValidateField(f.Field); err != nil {
			return err
		}
		switch f.Op {
		case OpEq, OpIn, OpContains:
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	if q.OrderBy != "" {
		if err := ValidateField(q.OrderBy); err != nil {
			return err
		}
	}
	return nil
}

// Normalize converts doc into canonical JSON types by round-tripping it
// through encoding/json. The id key is dropped.
func Normalize(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	delete(out, IDField)
	return out, nil
}

// NormalizeValue converts a single value into its canonical JSON type.
func NormalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns a deep copy of a normalized document.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Document:
		return map[string]any(Clone(t))
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Merge applies top-level keys of patch onto base and returns base.
func Merge(base, patch Document) Document {
	if base == nil {
		base = Document{}
	}
	for k, v := range patch {
		if k == IDField {
			continue
		}
		base[k] = cloneValue(v)
	}
	return base
}

// Now returns the current time in the layout every driver stores.
func Now() string { return FormatTime(time.Now()) }

func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime accepts TimeLayout and plain RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
