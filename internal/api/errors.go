package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized indicates the collaborator rejected the bearer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a valid bearer that lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the addressed entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest indicates the collaborator refused the payload.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error is a non-2xx answer from the REST collaborator.
type Error struct {
	Operation string
	Status    int
	Message   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Message)
}

// Unwrap maps the status onto the package sentinels.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	default:
		return nil
	}
}

// IsUnauthorized reports whether err is an authentication failure from the collaborator.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
