package user

import (
	"errors"
	"time"
)

const Collection = "users"

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

var (
	// ErrEmailTaken is returned when another user already uses the address.
	ErrEmailTaken = errors.New("email is already in use")
	ErrEmailBusy  = errors.New("email is being registered by another request")
)

// User is a staff account. The password hash never leaves the repository.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Phone      string    `json:"phone"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Role       string `json:"role" validate:"required,oneof=admin doctor nurse receptionist lab_technician pharmacist accountant"`
	Phone      string `json:"phone" validate:"max=30"`
	Department string `json:"department" validate:"max=100"`
	Status     string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

type UpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Password   *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role       *string `json:"role" validate:"omitempty,oneof=admin doctor nurse receptionist lab_technician pharmacist accountant"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Status     *string `json:"status" validate:"omitempty,oneof=Active Inactive"`

	PasswordHash *string `json:"-"`
}

type ListFilter struct {
	Role   string
	Status string
	Query  string
	Limit  int
	Offset int
}
