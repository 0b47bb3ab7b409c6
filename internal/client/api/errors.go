package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRejected     = errors.New("request rejected")
)

// APIError is a non-2xx answer from the server. Message is the server's
// {"msg"} or {"error"} text. errors.Is matches it against the sentinel of
// its status class.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusServiceUnavailable, e.Status == http.StatusBadGateway,
		e.Status == http.StatusGatewayTimeout:
		return ErrUnavailable
	case e.Status >= 400 && e.Status < 500:
		return ErrRejected
	default:
		return nil
	}
}
