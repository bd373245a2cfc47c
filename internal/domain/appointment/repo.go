package appointment

import "context"

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Appointment, int, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	Update(ctx context.Context, id string, req *UpdateRequest) (*Appointment, error)
	Delete(ctx context.Context, id string) error
	// ActiveInSlot returns the provider's blocking appointments at date and time.
	ActiveInSlot(ctx context.Context, providerID, date, clock string) ([]*Appointment, error)
}
