// Package types provides the entities, request shapes and validation rules shared by the tracker's stores and handlers.
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisterRequest represents the request to create a new account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdatePasswordRequest represents a password change for the signed-in account.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// Account is a stored identity including its credential hash. It never leaves
// the process; use Public for responses.
type Account struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// User represents an account for API responses.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the credential hash.
func (a *Account) Public() *User {
	return &User{ID: a.ID, Name: a.Name, Email: a.Email, CreatedAt: a.CreatedAt}
}

// NormalizeEmail trims and lower-cases an address so it can serve as a uniqueness key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize trims the name and normalizes the email.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

// Validate validates the RegisterRequest, reporting every violation.
func (r *RegisterRequest) Validate() error {
	return NewValidationError(collect(validate.Struct(r)))
}

// Validate validates the LoginRequest.
func (r *LoginRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return NewValidationError(collect(validate.Struct(r)))
}

// Validate validates the UpdatePasswordRequest.
func (r *UpdatePasswordRequest) Validate() error {
	return NewValidationError(collect(validate.Struct(r)))
}
