package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonathan/application-tracker/internal/auth"
	"github.com/jonathan/application-tracker/internal/tracker"
	"github.com/jonathan/application-tracker/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		ve     *types.ValidationError
		exists *auth.ErrEmailAlreadyExists
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &exists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrIdentityNotFound),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrPasswordMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the client-facing text for err. Internal failures never
// leak their detail.
func publicMessage(err error) string {
	var exists *auth.ErrEmailAlreadyExists
	switch {
	case errors.As(err, &exists):
		return "User already exists with this email"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "Not authorized to access this route"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "Invalid token"
	case errors.Is(err, auth.ErrIdentityNotFound):
		return "User not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "Current password is incorrect"
	}

	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusNotFound:
		return "Application not found"
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable, please retry"
	default:
		return "Internal server error"
	}
}
