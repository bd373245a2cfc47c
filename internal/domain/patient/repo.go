package patient

import "context"

// Repository is the patient data-access layer. GetByID, Update and Delete
// wrap docstore.ErrNotFound when the id is unknown.
type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, req *CreateRequest) (*Patient, error)
	Update(ctx context.Context, id string, req *UpdateRequest) (*Patient, error)
	Delete(ctx context.Context, id string) error
}
