package api

import (
	"errors"
	"fmt"
)

// TransportError is a non-2xx HTTP status from the API.
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// APIError is a well-formed response that carries an error payload.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsAPIError(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}
