package admission

import (
	"context"
	"time"
)

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Admission, int, error)
	GetByID(ctx context.Context, id string) (*Admission, error)
	Create(ctx context.Context, a *Admission) (*Admission, error)
	Discharge(ctx context.Context, id string, at time.Time, notes string) (*Admission, error)
	// Delete exists to undo a create whose bed assignment failed.
	Delete(ctx context.Context, id string) error
}
