package admission

import (
	"errors"
	"time"
)

const Collection = "admissions"

const (
	StatusAdmitted   = "Admitted"
	StatusDischarged = "Discharged"
)

var (
	ErrAlreadyAdmitted   = errors.New("patient is already admitted")
	ErrAlreadyDischarged = errors.New("admission is already discharged")
	ErrBedBusy           = errors.New("bed is being assigned by another request")
	ErrPatientBusy       = errors.New("patient is being admitted by another request")
)

type Admission struct {
	ID             string     `json:"id"`
	PatientID      string     `json:"patientId"`
	PatientName    string     `json:"patientName"`
	WardID         string     `json:"wardId"`
	WardName       string     `json:"wardName"`
	BedNumber      string     `json:"bedNumber"`
	Reason         string     `json:"reason"`
	AdmittedByID   string     `json:"admittedById"`
	AdmittedByName string     `json:"admittedByName"`
	Status         string     `json:"status"`
	AdmittedAt     time.Time  `json:"admittedAt"`
	DischargedAt   *time.Time `json:"dischargedAt,omitempty"`
	DischargeNotes string     `json:"dischargeNotes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type AdmitRequest struct {
	PatientID string `json:"patientId" validate:"required"`
	WardID    string `json:"wardId" validate:"required"`
	BedNumber string `json:"bedNumber" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

type DischargeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ListFilter struct {
	PatientID string
	WardID    string
	Status    string
	Limit     int
	Offset    int
}
