package ward

import (
	"errors"
	"time"
)

const Collection = "wards"

const (
	BedAvailable   = "Available"
	BedOccupied    = "Occupied"
	BedMaintenance = "Maintenance"
	BedReserved    = "Reserved"
)

var (
	ErrWardOccupied   = errors.New("ward has occupied beds")
	ErrBedOccupied    = errors.New("bed is occupied")
	ErrBedNotFound    = errors.New("bed not found")
	ErrBedUnavailable = errors.New("bed is not available")
	ErrDuplicateBed   = errors.New("bed number already exists in this ward")
)

type Bed struct {
	Number      string `json:"number"`
	Status      string `json:"status"`
	PatientID   string `json:"patientId,omitempty"`
	PatientName string `json:"patientName,omitempty"`
}

type Ward struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Floor     string    `json:"floor"`
	Beds      []Bed     `json:"beds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Occupancy counts beds by status.
func (w *Ward) Occupancy() map[string]int {
	out := map[string]int{BedAvailable: 0, BedOccupied: 0, BedMaintenance: 0, BedReserved: 0}
	for _, b := range w.Beds {
		out[b.Status]++
	}
	return out
}

func (w *Ward) bed(number string) (int, bool) {
	for i, b := range w.Beds {
		if b.Number == number {
			return i, true
		}
	}
	return -1, false
}

// BedInput adds a bed. Occupied is reached only through an admission.
type BedInput struct {
	Number string `json:"number" validate:"required,max=20"`
	Status string `json:"status" validate:"omitempty,oneof=Available Maintenance Reserved"`
}

type BedPatch struct {
	Status string `json:"status" validate:"required,oneof=Available Maintenance Reserved"`
}

type CreateRequest struct {
	Name  string     `json:"name" validate:"required,max=100"`
	Type  string     `json:"type" validate:"required,oneof=General ICU Maternity Pediatric Surgical Private"`
	Floor string     `json:"floor" validate:"max=20"`
	Beds  []BedInput `json:"beds" validate:"dive"`
}

type UpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Type  *string `json:"type" validate:"omitempty,oneof=General ICU Maternity Pediatric Surgical Private"`
	Floor *string `json:"floor" validate:"omitempty,max=20"`
}

type ListFilter struct {
	Type   string
	Limit  int
	Offset int
}
