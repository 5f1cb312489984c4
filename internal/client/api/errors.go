package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/inspectsync/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError is a non-2xx reply that is neither an auth failure nor an
// outage. Message is the envelope's error text when present.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match common sentinels with errors.Is.
func (e *ServerError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrAlreadyExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return common.ErrValidation
	}
	return nil
}

// mapStatus converts an HTTP status and the envelope message into an error.
// 2xx yields nil.
func mapStatus(status int, message string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		if message != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, message)
		}
		return ErrUnauthorized
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		if message != "" {
			return fmt.Errorf("%w: %s", ErrUnavailable, message)
		}
		return ErrUnavailable
	default:
		return &ServerError{Status: status, Message: message}
	}
}
