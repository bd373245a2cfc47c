package ward

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Ward, int, error)
	GetByID(ctx context.Context, id string) (*Ward, error)
	Create(ctx context.Context, w *Ward) (*Ward, error)
	Update(ctx context.Context, id string, req *UpdateRequest) (*Ward, error)
	// SetBeds replaces the whole bed array.
	SetBeds(ctx context.Context, id string, beds []Bed) (*Ward, error)
	Delete(ctx context.Context, id string) error
}
