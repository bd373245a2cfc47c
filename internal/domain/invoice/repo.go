package invoice

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Invoice, int, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	Create(ctx context.Context, inv *Invoice) (*Invoice, error)
	// Save writes the billing fields of inv back to id.
	Save(ctx context.Context, id string, inv *Invoice) (*Invoice, error)
	Delete(ctx context.Context, id string) error
}
