// Package sqlite stores documents as JSON text in a single SQLite table
// using the pure-Go modernc driver, for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

type Store struct {
	db *sql.DB
}

var (
	_ docstore.Store    = (*Store)(nil)
	_ docstore.Migrator = (*Store)(nil)
)

// Open creates the database file (and parent directories) if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "clinicdesk.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db}, nil
}

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
	now := docstore.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, data, now, now,
	); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(id, data)
}

// Update merges in Go rather than with json_patch, which merges nested
// objects recursively.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) (retErr error) {
	patch, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	current, err := decode(id, data)
	if err != nil {
		return err
	}
	delete(current, docstore.IDField)
	merged, err := encode(docstore.Merge(current, patch))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		merged, docstore.Now(), collection, id,
	); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *Store) Put(ctx context.Context, collection, id string, doc docstore.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: id is required", collection)
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	now := docstore.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, data, now, now,
	); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	where, args, err := whereClause(collection, q.Where)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE `)
	b.WriteString(where)
	if q.OrderBy != "" {
		b.WriteString(` ORDER BY ` + fieldExpr(q.OrderBy))
		if q.Desc {
			b.WriteString(` DESC`)
		}
		b.WriteString(`, rowid`)
	} else {
		b.WriteString(` ORDER BY rowid`)
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

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
	where, args, err := whereClause(collection, q.Where)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// fieldExpr is only called with names that passed docstore.ValidateField.
func fieldExpr(field string) string {
	if field == docstore.IDField {
		return "id"
	}
	return "json_extract(data, '$." + field + "')"
}

func whereClause(collection string, filters []docstore.Filter) (string, []any, error) {
	if err := docstore.ValidateQuery(docstore.Query{Where: filters}); err != nil {
		return "", nil, err
	}
	parts := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		expr := fieldExpr(f.Field)
		switch f.Op {
		case docstore.OpEq:
			clause, arg, err := eqClause(expr, f.Value)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, arg...)
		case docstore.OpIn:
			values, _ := f.Value.([]any)
			if len(values) == 0 {
				parts = append(parts, "0")
				continue
			}
			ors := make([]string, 0, len(values))
			for _, v := range values {
				clause, arg, err := eqClause(expr, v)
				if err != nil {
					return "", nil, err
				}
				ors = append(ors, clause)
				args = append(args, arg...)
			}
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		case docstore.OpContains:
			sub, _ := f.Value.(string)
			parts = append(parts, "lower("+expr+") LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(strings.ToLower(sub))+"%")
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

// eqClause compares a JSON path against a canonical value. json_extract
// returns SQL scalars for JSON scalars and JSON text for composites.
func eqClause(expr string, value any) (string, []any, error) {
	v, err := docstore.NormalizeValue(value)
	if err != nil {
		return "", nil, err
	}
	switch t := v.(type) {
	case nil:
		return expr + " IS NULL", nil, nil
	case bool:
		if t {
			return expr + " = 1", nil, nil
		}
		return expr + " = 0", nil, nil
	case string, float64:
		return expr + " = ?", []any{t}, nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return "", nil, err
		}
		return expr + " = json(?)", []any{string(raw)}, nil
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// EnsureCollections adds expression indexes on the hot filter fields.
func (s *Store) EnsureCollections(ctx context.Context, collections []docstore.Collection) error {
	for _, c := range collections {
		for _, field := range c.Indexes {
			if err := docstore.ValidateField(field); err != nil {
				return err
			}
			if err := docstore.ValidateField(c.Name); err != nil {
				return err
			}
			stmt := fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS idx_%s_%s ON documents (collection, %s)`,
				c.Name, field, fieldExpr(field),
			)
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("index %s.%s: %w", c.Name, field, err)
			}
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close(context.Context) error { return s.db.Close() }
