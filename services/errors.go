package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds detected by the services themselves. Repository and store
// failures are never wrapped into one of these — they propagate as-is.
var (
	// ErrNotFound marks a referenced case or message that does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks a denied access check or a role lacking
	// permission for the specific mutation
	ErrForbidden = errors.New("forbidden")

	// ErrValidation marks malformed input caught before persistence
	ErrValidation = errors.New("validation failed")
)

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// StatusForError maps a service error to the HTTP status the transport
// boundary should return. Anything unclassified is a server error.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
