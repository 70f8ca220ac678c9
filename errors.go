package mapper

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Every typed error below matches its sentinel
// through errors.Is.
var (
	// ErrConfiguration is returned when class metadata or a query references
	// something that cannot be mapped (missing alias, unknown property, cyclic hierarchy).
	ErrConfiguration = errors.New("mapper: configuration error")

	// ErrAmbiguousResult is returned when a single-result query matches more than one row.
	ErrAmbiguousResult = errors.New("mapper: ambiguous result")

	// ErrDeleteConcurrency is returned when a reload expects a row that no longer exists.
	ErrDeleteConcurrency = errors.New("mapper: object deleted concurrently")

	// ErrWriteFailure is returned when an insert, update, delete or commit fails.
	ErrWriteFailure = errors.New("mapper: write failed")

	// ErrReadFailure is returned when a query cannot be executed or scanned.
	ErrReadFailure = errors.New("mapper: read failed")

	// ErrValidation is returned when a pending change is rejected before execution.
	ErrValidation = errors.New("mapper: validation failed")
)

// ConfigurationError reports a mapping bug. It is never recoverable by retrying.
type ConfigurationError struct {
	Class string // Class being mapped, if known
	Msg   string
	Err   error // Optional underlying error
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Class != "" {
		return fmt.Sprintf("mapper: configuration error in %s: %s", e.Class, msg)
	}
	return fmt.Sprintf("mapper: configuration error: %s", msg)
}

// Is reports whether the target error matches ErrConfiguration.
func (e *ConfigurationError) Is(err error) bool {
	return err == ErrConfiguration
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError returns a new ConfigurationError with a formatted message.
func NewConfigurationError(class, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e) || errors.Is(err, ErrConfiguration)
}

// AmbiguousResultError is returned when a query expecting one row finds several.
type AmbiguousResultError struct {
	Class    string
	Criteria string
}

// Error returns the error string.
func (e *AmbiguousResultError) Error() string {
	if e.Criteria != "" {
		return fmt.Sprintf("mapper: loading a single %s matched more than one row (criteria: %s)", e.Class, e.Criteria)
	}
	return fmt.Sprintf("mapper: loading a single %s matched more than one row", e.Class)
}

// Is reports whether the target error matches ErrAmbiguousResult.
func (e *AmbiguousResultError) Is(err error) bool {
	return err == ErrAmbiguousResult
}

// NewAmbiguousResultError returns a new AmbiguousResultError.
func NewAmbiguousResultError(class, criteria string) *AmbiguousResultError {
	return &AmbiguousResultError{Class: class, Criteria: criteria}
}

// IsAmbiguousResult returns true if the error is an AmbiguousResultError.
func IsAmbiguousResult(err error) bool {
	if err == nil {
		return false
	}
	var e *AmbiguousResultError
	return errors.As(err, &e) || errors.Is(err, ErrAmbiguousResult)
}

// DeleteConcurrencyError is returned when an object being reloaded has
// been deleted from the store by someone else.
type DeleteConcurrencyError struct {
	Class string
	Key   string
}

// Error returns the error string.
func (e *DeleteConcurrencyError) Error() string {
	return fmt.Sprintf("mapper: %s %s no longer exists in the store; it may have been deleted by another user", e.Class, e.Key)
}

// Is reports whether the target error matches ErrDeleteConcurrency.
func (e *DeleteConcurrencyError) Is(err error) bool {
	return err == ErrDeleteConcurrency
}

// NewDeleteConcurrencyError returns a new DeleteConcurrencyError.
func NewDeleteConcurrencyError(class, key string) *DeleteConcurrencyError {
	return &DeleteConcurrencyError{Class: class, Key: key}
}

// IsDeleteConcurrency returns true if the error is a DeleteConcurrencyError.
func IsDeleteConcurrency(err error) bool {
	if err == nil {
		return false
	}
	var e *DeleteConcurrencyError
	return errors.As(err, &e) || errors.Is(err, ErrDeleteConcurrency)
}

// WriteFailureError wraps a failed write. Descriptor is the connection
// descriptor with credentials redacted.
type WriteFailureError struct {
	SQL        string
	Descriptor string
	Err        error
}

// Error returns the error string.
func (e *WriteFailureError) Error() string {
	return fmt.Sprintf("mapper: write failed on %s executing %q: %v", e.Descriptor, e.SQL, e.Err)
}

// Is reports whether the target error matches ErrWriteFailure.
func (e *WriteFailureError) Is(err error) bool {
	return err == ErrWriteFailure
}

// Unwrap returns the underlying error.
func (e *WriteFailureError) Unwrap() error {
	return e.Err
}

// NewWriteFailureError returns a new WriteFailureError.
func NewWriteFailureError(sql, descriptor string, err error) *WriteFailureError {
	return &WriteFailureError{SQL: sql, Descriptor: descriptor, Err: err}
}

// IsWriteFailure returns true if the error is a WriteFailureError.
func IsWriteFailure(err error) bool {
	if err == nil {
		return false
	}
	var e *WriteFailureError
	return errors.As(err, &e) || errors.Is(err, ErrWriteFailure)
}

// ReadFailureError wraps a failed query. Descriptor is the connection
// descriptor with credentials redacted.
type ReadFailureError struct {
	SQL        string
	Descriptor string
	Err        error
}

// Error returns the error string.
func (e *ReadFailureError) Error() string {
	return fmt.Sprintf("mapper: read failed on %s executing %q: %v", e.Descriptor, e.SQL, e.Err)
}

// Is reports whether the target error matches ErrReadFailure.
func (e *ReadFailureError) Is(err error) bool {
	return err == ErrReadFailure
}

// Unwrap returns the underlying error.
func (e *ReadFailureError) Unwrap() error {
	return e.Err
}

// NewReadFailureError returns a new ReadFailureError.
func NewReadFailureError(sql, descriptor string, err error) *ReadFailureError {
	return &ReadFailureError{SQL: sql, Descriptor: descriptor, Err: err}
}

// IsReadFailure returns true if the error is a ReadFailureError.
func IsReadFailure(err error) bool {
	if err == nil {
		return false
	}
	var e *ReadFailureError
	return errors.As(err, &e) || errors.Is(err, ErrReadFailure)
}

// ValidationError is returned when a pending change is rejected before
// any SQL is sent.
type ValidationError struct {
	Class string
	Err   error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("mapper: %s is not valid: %v", e.Class, e.Err)
}

// Is reports whether the target error matches ErrValidation.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError.
func NewValidationError(class string, err error) *ValidationError {
	return &ValidationError{Class: class, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e) || errors.Is(err, ErrValidation)
}

// RollbackError wraps an error that occurred while rolling back after a failure.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("mapper: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
