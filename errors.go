package regiongrow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned for configuration errors.
	ErrInvalidParameter = errors.New("regiongrow: invalid parameter")

	// ErrNotInitialized is returned when Execute is called before a
	// successful Initialize.
	ErrNotInitialized = errors.New("regiongrow: strategy not initialized")

	// ErrResourceExhausted is returned when the pool, the ID matrix or the
	// ID space cannot be allocated.
	ErrResourceExhausted = errors.New("regiongrow: resource exhausted")

	// ErrIO is returned when disk paging of the ID matrix fails.
	ErrIO = errors.New("regiongrow: i/o failure")

	// ErrCanceled is returned when the context is done before a run ends.
	// The context's error is wrapped alongside it.
	ErrCanceled = errors.New("regiongrow: canceled")
)

// ParamError describes a rejected parameter.
//
// It matches ErrInvalidParameter via errors.Is.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("regiongrow: invalid parameter %s: %s", e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

func paramErr(field, format string, args ...any) error {
	return &ParamError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
