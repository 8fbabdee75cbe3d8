package errors

import (
	"errors"
	"fmt"
)

// CacheError provides a structured error that callers can match by code.
type CacheError struct {
	Code     string
	Message  string
	Internal error
}

func (e *CacheError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *CacheError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is a CacheError carrying the same code, so wrapped copies
// still match the package sentinels.
func (e *CacheError) Is(target error) bool {
	if e == nil {
		return false
	}
	var other *CacheError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return other.Code == e.Code
}

// WithInternal returns a copy of the CacheError with an attached internal error.
func (e *CacheError) WithInternal(err error) *CacheError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the CacheError with a more specific message.
func (e *CacheError) WithMessage(message string) *CacheError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrEncoding = &CacheError{
		Code:    "ENCODING_ERROR",
		Message: "identifier cannot be represented as bytes",
	}

	ErrInvalidValue = &CacheError{
		Code:    "INVALID_VALUE",
		Message: "value must be a sequence or a mapping",
	}

	ErrDecode = &CacheError{
		Code:    "DECODE_ERROR",
		Message: "stored data cannot be decoded",
	}

	ErrConflict = &CacheError{
		Code:    "CONFLICT",
		Message: "cache entry already exists",
	}

	ErrNotFound = &CacheError{
		Code:    "NOT_FOUND",
		Message: "cache entry not found",
	}

	ErrStoreUnavailable = &CacheError{
		Code:    "STORE_UNAVAILABLE",
		Message: "cache store unavailable",
	}

	ErrInvalidConfig = &CacheError{
		Code:    "INVALID_CONFIG",
		Message: "invalid configuration",
	}

	ErrInternal = &CacheError{
		Code:    "INTERNAL_ERROR",
		Message: "internal error",
	}
)

// New builds a new cache error with the provided metadata.
func New(code, message string) *CacheError {
	return &CacheError{
		Code:    code,
		Message: message,
	}
}

// Wrap turns any error into a CacheError while keeping the original error for logging.
func Wrap(err error, message string) *CacheError {
	return &CacheError{
		Code:     ErrInternal.Code,
		Message:  message,
		Internal: err,
	}
}

// FromError converts a generic error into a CacheError, defaulting to ErrInternal.
func FromError(err error) *CacheError {
	if err == nil {
		return nil
	}

	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		return cacheErr
	}

	return ErrInternal.WithInternal(err)
}

// Code returns the code of the first CacheError in err's chain, or an empty string.
func Code(err error) string {
	var cacheErr *CacheError
	if errors.As(err, &cacheErr) && cacheErr != nil {
		return cacheErr.Code
	}
	return ""
}
