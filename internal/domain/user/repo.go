package user

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*User, int, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail matches the lowercased address.
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User, passwordHash string) (*User, error)
	Update(ctx context.Context, id string, req *UpdateRequest) (*User, error)
	Delete(ctx context.Context, id string) error
}
