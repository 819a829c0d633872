package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrProcessing = errors.New("processing failed")
	ErrNotFound   = errors.New("not found")
	ErrMethod     = errors.New("method not allowed")
	ErrInternal   = errors.New("internal error")
)

// KindError tags an error with one of the sentinel kinds and the operation
// that produced it.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns a KindError with no underlying cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind tags err with kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Op: op, Kind: kind, Err: err}
}
