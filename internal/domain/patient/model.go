package patient

import (
	"strings"
	"time"
)

const Collection = "patients"

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type Insurance struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policyNumber"`
	GroupNumber  string `json:"groupNumber"`
	ExpiryDate   string `json:"expiryDate"`
}

type Patient struct {
	ID               string           `json:"id"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	DateOfBirth      string           `json:"dateOfBirth"`
	Gender           string           `json:"gender"`
	Phone            string           `json:"phone"`
	Email            string           `json:"email"`
	BloodGroup       string           `json:"bloodGroup"`
	Allergies        []string         `json:"allergies"`
	Address          Address          `json:"address"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Insurance        Insurance        `json:"insurance"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CreateRequest is the registration form.
type CreateRequest struct {
	FirstName        string           `json:"firstName" validate:"required,max=100"`
	LastName         string           `json:"lastName" validate:"required,max=100"`
	DateOfBirth      string           `json:"dateOfBirth" validate:"required,date"`
	Gender           string           `json:"gender" validate:"required,oneof=Male Female Other"`
	Phone            string           `json:"phone" validate:"max=30"`
	Email            string           `json:"email" validate:"omitempty,email"`
	BloodGroup       string           `json:"bloodGroup" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        []string         `json:"allergies" validate:"dive,required,max=100"`
	Address          Address          `json:"address"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Insurance        InsuranceInput   `json:"insurance"`
	Status           string           `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

type InsuranceInput struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policyNumber"`
	GroupNumber  string `json:"groupNumber"`
	ExpiryDate   string `json:"expiryDate" validate:"omitempty,date"`
}

// UpdateRequest is a partial update. Nil fields are left untouched; inside
// the nested patches, nil leaves keep their stored values.
type UpdateRequest struct {
	FirstName        *string                `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName         *string                `json:"lastName" validate:"omitempty,min=1,max=100"`
	DateOfBirth      *string                `json:"dateOfBirth" validate:"omitempty,date"`
	Gender           *string                `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Phone            *string                `json:"phone" validate:"omitempty,max=30"`
	Email            *string                `json:"email" validate:"omitempty,email"`
	BloodGroup       *string                `json:"bloodGroup" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        *[]string              `json:"allergies" validate:"omitempty,dive,required,max=100"`
	Address          *AddressPatch          `json:"address"`
	EmergencyContact *EmergencyContactPatch `json:"emergencyContact"`
	Insurance        *InsurancePatch        `json:"insurance"`
	Status           *string                `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

type AddressPatch struct {
	Street     *string `json:"street"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postalCode"`
	Country    *string `json:"country"`
}

type EmergencyContactPatch struct {
	Name         *string `json:"name"`
	Relationship *string `json:"relationship"`
	Phone        *string `json:"phone"`
}

type InsurancePatch struct {
	Provider     *string `json:"provider"`
	PolicyNumber *string `json:"policyNumber"`
	GroupNumber  *string `json:"groupNumber"`
	ExpiryDate   *string `json:"expiryDate" validate:"omitempty,date"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.DateOfBirth == nil &&
		r.Gender == nil && r.Phone == nil && r.Email == nil && r.BloodGroup == nil &&
		r.Allergies == nil && r.Address == nil && r.EmergencyContact == nil &&
		r.Insurance == nil && r.Status == nil
}

// ListFilter narrows a patient listing. Query matches the full name.
type ListFilter struct {
	Status string
	Query  string
	Limit  int
	Offset int
}
