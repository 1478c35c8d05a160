package validation

import (
	"errors"
	"fmt"
)

// Rejection causes
var (
	ErrMissingOrderID = errors.New("missing or invalid order id")
	ErrInvalidAmount  = errors.New("missing or non-positive amount")
	ErrInvalidRecord  = errors.New("invalid record")
)

// RejectionError is returned when extracted fields cannot form a sale record.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(cause error, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...), Err: cause}
}

// ExtractRequest is the payload for POST /extract
type ExtractRequest struct {
	Body string `json:"body" validate:"required"` // raw notification body
}
