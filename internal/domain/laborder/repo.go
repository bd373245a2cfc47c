package laborder

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*LabOrder, int, error)
	GetByID(ctx context.Context, id string) (*LabOrder, error)
	Create(ctx context.Context, o *LabOrder) (*LabOrder, error)
	Update(ctx context.Context, id string, req *UpdateRequest) (*LabOrder, error)
	// SetResults replaces the result set and moves the order to status.
	SetResults(ctx context.Context, id string, results []Result, status string) (*LabOrder, error)
	Delete(ctx context.Context, id string) error
}
