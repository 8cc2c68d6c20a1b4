package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no session token was presented.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidCredential covers bad, expired or tampered tokens.
	ErrInvalidCredential = errors.New("invalid session")
	// ErrIdentityNotFound means the token is valid but its account is gone.
	ErrIdentityNotFound = errors.New("account not found")
	// ErrInvalidCredentials is the generic login failure.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrPasswordMismatch indicates the current password is incorrect.
	ErrPasswordMismatch = errors.New("current password is incorrect")
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}
