package appointment

import (
	"errors"
	"time"
)

const Collection = "appointments"

const (
	StatusScheduled = "Scheduled"
	StatusConfirmed = "Confirmed"
	StatusArrived   = "Arrived"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusNoShow    = "No Show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusArrived:   true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// blockingStatuses hold the provider's slot.
var blockingStatuses = map[string]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusArrived:   true,
}

var terminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

const DefaultDuration = 30

var (
	// ErrSlotTaken means the provider already has an active booking at that
	// date and time.
	ErrSlotTaken = errors.New("provider already has an appointment at this time")
	// ErrInvalidTransition means the appointment is in a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	PatientName     string    `json:"patientName"`
	ProviderID      string    `json:"providerId"`
	ProviderName    string    `json:"providerName"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"durationMinutes"`
	Type            string    `json:"type"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
	Status          string    `json:"status"`
	InvoiceID       string    `json:"invoiceId,omitempty"`
	PaymentStatus   string    `json:"paymentStatus,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	PatientID       string `json:"patientId" validate:"required"`
	ProviderID      string `json:"providerId" validate:"required"`
	Date            string `json:"date" validate:"required,date"`
	Time            string `json:"time" validate:"required,clock"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=5,max=480"`
	Type            string `json:"type" validate:"required,oneof=Consultation Checkup Follow-up Procedure"`
	Reason          string `json:"reason" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=2000"`
	Status          string `json:"status"`
}

// UpdateRequest reschedules or moves an appointment through its statuses.
// The name fields are resolved by the service, never bound from the body.
type UpdateRequest struct {
	PatientID       *string `json:"patientId" validate:"omitempty,min=1"`
	ProviderID      *string `json:"providerId" validate:"omitempty,min=1"`
	Date            *string `json:"date" validate:"omitempty,date"`
	Time            *string `json:"time" validate:"omitempty,clock"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=5,max=480"`
	Type            *string `json:"type" validate:"omitempty,oneof=Consultation Checkup Follow-up Procedure"`
	Reason          *string `json:"reason" validate:"omitempty,max=500"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
	Status          *string `json:"status"`

	PatientName  *string `json:"-"`
	ProviderName *string `json:"-"`
}

type ListFilter struct {
	PatientID  string
	ProviderID string
	Date       string
	Status     string
	Limit      int
	Offset     int
}
