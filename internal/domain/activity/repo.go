package activity

import "context"

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, f Filter) ([]*Entry, error)
}
