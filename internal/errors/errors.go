package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeResolution represents signed-URL resolution errors
	ErrTypeResolution ErrorType = "resolution"
	// ErrTypeLoad represents audio load errors (metadata/network/decode)
	ErrTypeLoad ErrorType = "load"
	// ErrTypeOffline represents offline-unavailable errors
	ErrTypeOffline ErrorType = "offline_unavailable"
	// ErrTypeCrossfade represents crossfade transition errors
	ErrTypeCrossfade ErrorType = "crossfade"
	// ErrTypeCache represents local cache errors
	ErrTypeCache ErrorType = "cache"
	// ErrTypeStorage represents persistent storage errors
	ErrTypeStorage ErrorType = "storage"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents unknown errors
	ErrTypeUnknown ErrorType = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewResolutionError creates a new signed-URL resolution error
func NewResolutionError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeResolution,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewLoadError creates a new audio load error
func NewLoadError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeLoad,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewOfflineError creates a new offline-unavailable error.
// Never retryable: the track is simply not in the local cache.
func NewOfflineError(trackID string) *AppError {
	return &AppError{
		Type:      ErrTypeOffline,
		Message:   fmt.Sprintf("track %s is not available offline", trackID),
		Retryable: false,
	}
}

// NewCrossfadeError creates a new crossfade error
func NewCrossfadeError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeCrossfade,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewCacheError creates a new cache error
func NewCacheError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeCache,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewStorageError creates a new persistent storage error
func NewStorageError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeStorage,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:      ErrTypeValidation,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// IsOfflineError checks if an error is an offline-unavailable error
func IsOfflineError(err error) bool {
	return GetErrorType(err) == ErrTypeOffline
}

// IsResolutionError checks if an error is a signed-URL resolution error
func IsResolutionError(err error) bool {
	return GetErrorType(err) == ErrTypeResolution
}

// IsLoadError checks if an error is an audio load error
func IsLoadError(err error) bool {
	return GetErrorType(err) == ErrTypeLoad
}
