// Package errors provides the error types used across salesforecast.
//
// It re-exports the wrapping helpers of github.com/cockroachdb/errors so that every
// error created in the module carries a stack trace, and it defines two families of
// typed errors:
//
//   - estimator errors (NotFittedError, DimensionError, ValueError, ModelError,
//     ValidationError) raised by the preprocessing and model packages
//   - pipeline errors (SchemaError, TransformError, InferenceError, ErrNoData) that
//     classify what went wrong with a batch of store records
//
// All typed errors work with errors.Is / errors.As through the standard wrapping chain.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors.
var (
	// ErrNotImplemented is returned by features that are recognised but not supported.
	ErrNotImplemented = errors.New("not implemented")

	// ErrEmptyData is returned when an estimator receives no rows or no columns.
	ErrEmptyData = errors.New("empty data")

	// ErrNotFitted is matched by every NotFittedError.
	ErrNotFitted = errors.New("estimator not fitted")

	// ErrDimensionMismatch is matched by every DimensionError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNoData marks a request whose input collection is empty or filtered to zero rows.
	// It is not a failure: callers answer it with an empty success payload.
	ErrNoData = errors.New("no data")

	// ErrMalformedInput marks a request body that is not valid JSON.
	ErrMalformedInput = errors.New("malformed input")
)

// New creates an error with a stack trace.
func New(msg string) error { return errors.New(msg) }

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// Wrap annotates err with msg. Wrap(nil, msg) returns nil.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message. Wrapf(nil, ...) returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error { return errors.Unwrap(err) }

// NotFittedError is returned when an estimator is used before Fit or before its
// parameters were imported.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("salesforecast: %s: not fitted, call Fit or load parameters before %s", e.ModelName, e.Method)
}

func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return &NotFittedError{ModelName: modelName, Method: method}
}

// DimensionError reports a shape mismatch along Axis (0 = rows, 1 = columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis == 1 {
		axis = "columns"
	}
	return fmt.Sprintf("salesforecast: %s: dimension mismatch in %s: expected %d, got %d", e.Op, axis, e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("salesforecast: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return &ValueError{Op: op, Message: message}
}

// ModelError is a generic failure inside an estimator, wrapping its cause.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("salesforecast: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("salesforecast: %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a ModelError.
func NewModelError(op, message string, err error) error {
	return &ModelError{Op: op, Message: message, Err: err}
}

// ValidationError reports a configuration or parameter that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("salesforecast: invalid %s (%v): %s", e.ParamName, e.Value, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(paramName, reason string, value interface{}) error {
	return &ValidationError{ParamName: paramName, Reason: reason, Value: value}
}

// SchemaError rejects a batch whose records do not follow the input schema: an
// unknown or missing field, a value of the wrong type, or an unparseable date.
type SchemaError struct {
	Row    int
	Field  string
	Value  interface{}
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("salesforecast: schema: row %d: field %q: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("salesforecast: schema: row %d: field %q: %s (value %v)", e.Row, e.Field, e.Reason, e.Value)
}

// NewSchemaError creates a SchemaError.
func NewSchemaError(row int, field string, value interface{}, reason string) error {
	return &SchemaError{Row: row, Field: field, Value: value, Reason: reason}
}

// TransformError is raised when a categorical value is unknown to a pretrained encoder.
// It is never mapped to a default category.
type TransformError struct {
	Field string
	Value string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("salesforecast: transform: field %q: value %q not seen by the pretrained encoder", e.Field, e.Value)
}

// NewTransformError creates a TransformError.
func NewTransformError(field, value string) error {
	return &TransformError{Field: field, Value: value}
}

// InferenceError reports a feature matrix the model cannot consume, or a model output
// that does not line up with its input rows.
type InferenceError struct {
	Reason   string
	Expected int
	Got      int
	Err      error
}

func (e *InferenceError) Error() string {
	msg := fmt.Sprintf("salesforecast: inference: %s: expected %d, got %d", e.Reason, e.Expected, e.Got)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InferenceError) Unwrap() error { return e.Err }

// NewInferenceError creates an InferenceError.
func NewInferenceError(reason string, expected, got int, err error) error {
	return &InferenceError{Reason: reason, Expected: expected, Got: got, Err: err}
}

// Recover converts a panic in the calling function into an error stored in *err.
// Use as `defer Recover(&err, "Type.Method")`.
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		*err = NewModelError(op, "panic recovered", errors.Newf("%v", r))
	}
}
