package invoice

import (
	"errors"
	"math"
	"time"
)

const Collection = "invoices"

// ErrNothingBilled rejects an invoice with neither item lines nor a total.
var ErrNothingBilled = errors.New("add at least one item or set totalAmount")

const (
	StatusPendingPayment = "Pending Payment"
	StatusPartiallyPaid  = "Partially Paid"
	StatusPaid           = "Paid"
	StatusCancelled      = "Cancelled"
	StatusRefunded       = "Refunded"
)

var validStatuses = map[string]bool{
	StatusPendingPayment: true,
	StatusPartiallyPaid:  true,
	StatusPaid:           true,
	StatusCancelled:      true,
	StatusRefunded:       true,
}

type Item struct {
	Description string  `json:"description" validate:"required,max=200"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

func (i Item) Amount() float64 { return i.Quantity * i.UnitPrice }

type Invoice struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	PatientName   string    `json:"patientName"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	LabOrderID    string    `json:"labOrderId,omitempty"`
	Items         []Item    `json:"items"`
	TotalAmount   float64   `json:"totalAmount"`
	AmountPaid    float64   `json:"amountPaid"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	DueDate       string    `json:"dueDate,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (inv *Invoice) Balance() float64 { return round2(inv.TotalAmount - inv.AmountPaid) }

type CreateRequest struct {
	PatientID     string   `json:"patientId" validate:"required"`
	AppointmentID string   `json:"appointmentId"`
	LabOrderID    string   `json:"labOrderId"`
	Items         []Item   `json:"items" validate:"omitempty,dive"`
	TotalAmount   *float64 `json:"totalAmount" validate:"omitempty,gte=0"`
	AmountPaid    float64  `json:"amountPaid" validate:"gte=0"`
	Status        string   `json:"status"`
	PaymentMethod string   `json:"paymentMethod" validate:"omitempty,oneof=Cash Card Insurance Transfer Mobile"`
	DueDate       string   `json:"dueDate" validate:"omitempty,date"`
}

type UpdateRequest struct {
	Items         *[]Item  `json:"items" validate:"omitempty,dive"`
	TotalAmount   *float64 `json:"totalAmount" validate:"omitempty,gte=0"`
	AmountPaid    *float64 `json:"amountPaid" validate:"omitempty,gte=0"`
	Status        *string  `json:"status"`
	PaymentMethod *string  `json:"paymentMethod" validate:"omitempty,oneof=Cash Card Insurance Transfer Mobile"`
	DueDate       *string  `json:"dueDate" validate:"omitempty,date"`
}

type ListFilter struct {
	PatientID string
	Status    string
	Limit     int
	Offset    int
}

// SumItems totals the lines, rounded to cents.
func SumItems(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Amount()
	}
	return round2(sum)
}

// DeriveStatus computes the payment status from the amounts.
func DeriveStatus(total, paid float64) string {
	switch {
	case paid <= 0:
		return StatusPendingPayment
	case paid < total:
		return StatusPartiallyPaid
	default:
		return StatusPaid
	}
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
