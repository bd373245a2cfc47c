package user

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

const (
	keyName         = "name"
	keyEmail        = "email"
	keyPasswordHash = "password_hash"
	keyRole         = "role"
	keyPhone        = "phone"
	keyDepartment   = "department"
	keyStatus       = "status"
	keyCreatedAt    = "created_at"
	keyUpdatedAt    = "updated_at"
)

var Indexes = []string{keyEmail, keyRole, keyStatus, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	q := docstore.Query{OrderBy: keyName}
	if f.Role != "" {
		q.Where = append(q.Where, docstore.Eq(keyRole, f.Role))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq(keyStatus, f.Status))
	}
	if f.Query != "" {
		q.Where = append(q.Where, docstore.Contains(keyName, f.Query))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	out := make([]*User, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*User, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	docs, err := r.store.Find(ctx, Collection, docstore.Query{
		Where: []docstore.Filter{docstore.Eq(keyEmail, email)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", email, docstore.ErrNotFound)
	}
	return fromDoc(docs[0]), nil
}

func (r *docRepo) Create(ctx context.Context, u *User, passwordHash string) (*User, error) {
	now := docstore.Now()
	id, err := r.store.Insert(ctx, Collection, docstore.Document{
		keyName:         u.Name,
		keyEmail:        u.Email,
		keyPasswordHash: passwordHash,
		keyRole:         u.Role,
		keyPhone:        u.Phone,
		keyDepartment:   u.Department,
		keyStatus:       u.Status,
		keyCreatedAt:    now,
		keyUpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Update(ctx context.Context, id string, req *UpdateRequest) (*User, error) {
	fields := docstore.Document{keyUpdatedAt: docstore.Now()}
	for key, v := range map[string]*string{
		keyName:         req.Name,
		keyEmail:        req.Email,
		keyRole:         req.Role,
		keyPhone:        req.Phone,
		keyDepartment:   req.Department,
		keyStatus:       req.Status,
		keyPasswordHash: req.PasswordHash,
	} {
		if v != nil {
			fields[key] = *v
		}
	}
	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

func fromDoc(d docstore.Document) *User {
	return &User{
		ID:         d.ID(),
		Name:       d.String(keyName),
		Email:      d.String(keyEmail),
		Role:       d.String(keyRole),
		Phone:      d.String(keyPhone),
		Department: d.String(keyDepartment),
		Status:     d.String(keyStatus),
		CreatedAt:  d.Time(keyCreatedAt),
		UpdatedAt:  d.Time(keyUpdatedAt),
	}
}

// Present drops the password hash before a user document is broadcast.
func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}

