package domain

import (
	"errors"
	"fmt"
)

// The engine distinguishes two failure classes: transport failures (store or
// feed unreachable, bad response) and validation failures (a record missing
// the fields an operation needs). Read-side transport failures are swallowed
// by callers and degrade to empty results; write-side failures propagate.

// ErrTransport is the sentinel matched by errors.Is for transport failures.
var ErrTransport = errors.New("transport failure")

// ErrValidation is the sentinel matched by errors.Is for validation failures.
var ErrValidation = errors.New("validation failure")

// TransportError wraps a failure reaching the persisted store or the broker
// feed.
type TransportError struct {
	Op  string // operation that failed, e.g. "fetch preorders"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NewTransportError wraps err as a TransportError for the given operation.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// ValidationError reports a record that is missing a field an operation
// requires (no instrument, no usable identity, ...).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError reports a missing or unusable field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
