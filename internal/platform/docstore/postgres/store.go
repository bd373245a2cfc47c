// Package postgres stores documents in a single JSONB table through a pgx
// connection pool.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ docstore.Store    = (*Store)(nil)
	_ docstore.Migrator = (*Store)(nil)
)

// Open dials the pool. The documents table is created by Migrate.
func Open(ctx context.Context, databaseURL string, maxConns, minConns int32) (*Store, error) {
	pool, err := db.NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Migrator returns the SQL migrator for the documents table.
func (s *Store) Migrator() *db.Migrator {
	return db.NewMigrator(s.pool, migrations, "migrations")
}

// Stats reports pool statistics for the readiness endpoint.
func (s *Store) Stats() *db.PoolStats { return db.Stats(s.pool) }

func encode(doc docstore.Document) (string, error) {
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func decode(id, data string) (docstore.Document, error) {
	doc := docstore.Document{}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc[docstore.IDField] = id
	return doc, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)`,
		collection, id, data,
	); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT data::text FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(id, data)
}

// Update relies on jsonb || which merges top-level keys only.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	patch, err := encode(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::text::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, patch,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Put(ctx context.Context, collection, id string, doc docstore.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: id is required", collection)
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, data,
	); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(collection, q.Where)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT id, data::text FROM documents WHERE `)
	b.WriteString(where)
	b.WriteString(` ORDER BY `)
	if q.OrderBy != "" {
		b.WriteString(jsonExpr(q.OrderBy))
		if q.Desc {
			b.WriteString(` DESC`)
		}
		b.WriteString(`, `)
	}
	b.WriteString(`created_at, id`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer rows.Close()

	out := []docstore.Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(collection, q.Where)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// jsonExpr and textExpr are only called with validated field names.
func jsonExpr(field string) string {
	if field == docstore.IDField {
		return "to_jsonb(id)"
	}
	return "(data -> '" + field + "')"
}

func textExpr(field string) string {
	if field == docstore.IDField {
		return "id"
	}
	return "(data ->> '" + field + "')"
}

func buildWhere(collection string, filters []docstore.Filter) (string, []any, error) {
	args := []any{collection}
	parts := []string{"collection = $1"}
	for _, f := range filters {
		switch f.Op {
		case docstore.OpEq:
			v, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
			}
			args = append(args, string(v))
			parts = append(parts, fmt.Sprintf("%s = $%d::text::jsonb", jsonExpr(f.Field), len(args)))
		case docstore.OpIn:
			values, _ := f.Value.([]any)
			v, err := json.Marshal(values)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
			}
			args = append(args, string(v))
			parts = append(parts, fmt.Sprintf(
				"%s IN (SELECT jsonb_array_elements($%d::text::jsonb))", jsonExpr(f.Field), len(args)))
		case docstore.OpContains:
			sub, _ := f.Value.(string)
			args = append(args, "%"+escapeLike(sub)+"%")
			parts = append(parts, fmt.Sprintf("%s ILIKE $%d", textExpr(f.Field), len(args)))
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// EnsureCollections applies pending migrations and adds partial expression
// indexes for each collection's filter fields.
func (s *Store) EnsureCollections(ctx context.Context, collections []docstore.Collection) error {
	if _, err := s.Migrator().Up(ctx); err != nil {
		return err
	}
	for _, c := range collections {
		if err := docstore.ValidateField(c.Name); err != nil {
			return err
		}
		for _, field := range c.Indexes {
			if err := docstore.ValidateField(field); err != nil {
				return err
			}
			stmt := fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS idx_%s_%s ON documents (%s) WHERE collection = '%s'`,
				c.Name, field, jsonExpr(field), c.Name,
			)
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("index %s.%s: %w", c.Name, field, err)
			}
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
