package laborder

import (
	"errors"
	"time"
)

const Collection = "lab_orders"

const (
	StatusPendingSample   = "Pending Sample"
	StatusSampleCollected = "Sample Collected"
	StatusProcessing      = "Processing"
	StatusResultsReady    = "Results Ready"
	StatusCompleted       = "Completed"
	StatusCancelled       = "Cancelled"
)

var validStatuses = map[string]bool{
	StatusPendingSample:   true,
	StatusSampleCollected: true,
	StatusProcessing:      true,
	StatusResultsReady:    true,
	StatusCompleted:       true,
	StatusCancelled:       true,
}

const (
	PriorityRoutine = "Routine"
	PriorityUrgent  = "Urgent"
	PrioritySTAT    = "STAT"
)

var (
	ErrCancelled   = errors.New("lab order is cancelled")
	ErrUnknownTest = errors.New("result does not match an ordered test")
)

type Test struct {
	Code  string  `json:"code" validate:"required,max=30"`
	Name  string  `json:"name" validate:"required,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
}

type Result struct {
	TestCode       string `json:"testCode" validate:"required"`
	Value          string `json:"value" validate:"required,max=100"`
	Unit           string `json:"unit" validate:"max=30"`
	ReferenceRange string `json:"referenceRange" validate:"max=100"`
	Flag           string `json:"flag" validate:"omitempty,oneof=Normal High Low Critical"`
}

type LabOrder struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	PatientName   string    `json:"patientName"`
	OrderedByID   string    `json:"orderedById"`
	OrderedByName string    `json:"orderedByName"`
	Tests         []Test    `json:"tests"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	Results       []Result  `json:"results"`
	Notes         string    `json:"notes"`
	InvoiceID     string    `json:"invoiceId,omitempty"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Total is the sum of the ordered tests' prices.
func (o *LabOrder) Total() float64 {
	var sum float64
	for _, t := range o.Tests {
		sum += t.Price
	}
	return sum
}

type CreateRequest struct {
	PatientID string `json:"patientId" validate:"required"`
	Tests     []Test `json:"tests" validate:"required,min=1,dive"`
	Priority  string `json:"priority" validate:"omitempty,oneof=Routine Urgent STAT"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type UpdateRequest struct {
	Tests    *[]Test `json:"tests" validate:"omitempty,min=1,dive"`
	Priority *string `json:"priority" validate:"omitempty,oneof=Routine Urgent STAT"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

type ResultsRequest struct {
	Results []Result `json:"results" validate:"required,min=1,dive"`
}

type ListFilter struct {
	PatientID string
	Status    string
	Priority  string
	Limit     int
	Offset    int
}
