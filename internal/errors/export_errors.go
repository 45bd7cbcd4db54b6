package errors

import (
	"errors"
	"fmt"
)

// ConfigValidationError reports an invalid experiment configuration.
// It is the only error that stops a whole export invocation.
type ConfigValidationError struct {
	*AppError
	Parameter  string
	Experiment string
}

// Unwrap exposes the embedded AppError to errors.As.
func (e *ConfigValidationError) Unwrap() error { return e.AppError }

// NewConfigValidationError creates a validation error for one parameter of
// one experiment. experiment may be "DEFAULT".
func NewConfigValidationError(parameter, experiment, reason string) *ConfigValidationError {
	msg := fmt.Sprintf("%s in %s: %s", parameter, experiment, reason)
	if experiment == "" {
		msg = fmt.Sprintf("%s: %s", parameter, reason)
	}
	app := NewAppError(ErrTypeConfig, msg, nil).
		WithContext("parameter", parameter).
		WithContext("experiment", experiment)
	return &ConfigValidationError{AppError: app, Parameter: parameter, Experiment: experiment}
}

// RemoteServiceError wraps a transport or HTTP failure of the tracking service.
type RemoteServiceError struct {
	*AppError
	Operation  string
	StatusCode int
}

// Unwrap exposes the embedded AppError to errors.As.
func (e *RemoteServiceError) Unwrap() error { return e.AppError }

// NewRemoteServiceError creates a remote service error. statusCode is zero
// when the request never produced a response.
func NewRemoteServiceError(operation string, statusCode int, cause error) *RemoteServiceError {
	msg := fmt.Sprintf("tracking service %s failed", operation)
	if statusCode != 0 {
		msg = fmt.Sprintf("tracking service %s failed with status %d", operation, statusCode)
	}
	app := NewNetworkError(msg, cause).
		WithContext("operation", operation).
		WithContext("status_code", statusCode)
	return &RemoteServiceError{AppError: app, Operation: operation, StatusCode: statusCode}
}

// MissingFieldWarning records that a run carried no sample of a requested field.
type MissingFieldWarning struct {
	*AppError
	Run   string
	Field string
}

// Unwrap exposes the embedded AppError to errors.As.
func (e *MissingFieldWarning) Unwrap() error { return e.AppError }

// NewMissingFieldWarning creates a missing field warning
func NewMissingFieldWarning(run, field string) *MissingFieldWarning {
	app := NewAppError(ErrTypeMissingData, fmt.Sprintf("run %s does not have a field called %s", run, field), nil).
		WithContext("run", run).
		WithContext("field", field)
	return &MissingFieldWarning{AppError: app, Run: run, Field: field}
}

// UnsupportedFormatError reports an output_data_type that no writer handles.
type UnsupportedFormatError struct {
	*AppError
	Format string
}

// Unwrap exposes the embedded AppError to errors.As.
func (e *UnsupportedFormatError) Unwrap() error { return e.AppError }

// NewUnsupportedFormatError creates an unsupported format error
func NewUnsupportedFormatError(format string, supported []string) *UnsupportedFormatError {
	app := NewAppError(ErrTypeFormat,
		fmt.Sprintf("%q is not a valid output format, possible formats are %v", format, supported), nil).
		WithContext("format", format)
	return &UnsupportedFormatError{AppError: app, Format: format}
}

// FileCollisionError reports that a destination already exists and
// overwriting was not requested.
type FileCollisionError struct {
	*AppError
	Path string
}

// Unwrap exposes the embedded AppError to errors.As.
func (e *FileCollisionError) Unwrap() error { return e.AppError }

// NewFileCollisionError creates a file collision error
func NewFileCollisionError(path string) *FileCollisionError {
	app := NewAppError(ErrTypeCollision,
		fmt.Sprintf("file %s already exists, rerun with overwrite to replace it", path), nil).
		WithContext("path", path)
	return &FileCollisionError{AppError: app, Path: path}
}

// IsConfigValidation reports whether err is or wraps a ConfigValidationError.
func IsConfigValidation(err error) bool {
	var target *ConfigValidationError
	return errors.As(err, &target)
}

// IsRemoteService reports whether err is or wraps a RemoteServiceError.
func IsRemoteService(err error) bool {
	var target *RemoteServiceError
	return errors.As(err, &target)
}

// IsFileCollision reports whether err is or wraps a FileCollisionError.
func IsFileCollision(err error) bool {
	var target *FileCollisionError
	return errors.As(err, &target)
}

// IsUnsupportedFormat reports whether err is or wraps an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}
