package badge

import (
	"errors"
	"fmt"
)

// Error codes for the generation pipeline.
// Every code is fatal to the invocation that produced it.
const (
	// ErrCodeConfigLookup indicates an unknown badge or issuer id.
	ErrCodeConfigLookup = "CONFIG_LOOKUP"

	// ErrCodeCatalogInvalid indicates the catalog document failed validation.
	ErrCodeCatalogInvalid = "CATALOG_INVALID"

	// ErrCodeMissingSecret indicates the issuer key or recipient salt is absent.
	ErrCodeMissingSecret = "MISSING_SECRET"

	// ErrCodeMissingRequiredInput indicates a required input has no value and no default.
	ErrCodeMissingRequiredInput = "MISSING_REQUIRED_INPUT"

	// ErrCodeInvalidDateFormat indicates a date input does not match TimestampLayout.
	ErrCodeInvalidDateFormat = "INVALID_DATE_FORMAT"

	// ErrCodeUnknownInput indicates a supplied input is not part of the badge schema.
	ErrCodeUnknownInput = "UNKNOWN_INPUT"

	// ErrCodeConfiguration indicates misuse of the input schema (e.g. default_now on a non-date field).
	ErrCodeConfiguration = "CONFIGURATION"

	// ErrCodeSigningKey indicates the issuer private key could not be parsed or used.
	ErrCodeSigningKey = "SIGNING_KEY"

	// ErrCodeSigning indicates the signing library failed.
	ErrCodeSigning = "SIGNING"

	// ErrCodeImageFormat indicates the source image is not a well-formed PNG.
	ErrCodeImageFormat = "IMAGE_FORMAT"

	// ErrCodeNetwork indicates the source image could not be fetched.
	ErrCodeNetwork = "NETWORK"

	// ErrCodeIO indicates a filesystem read or write failed.
	ErrCodeIO = "IO"
)

// Error is a pipeline error carrying one of the ErrCode* values.
type Error struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is a human-readable description naming the failing field or resource.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrConfigLookup         = NewError(ErrCodeConfigLookup, "unknown catalog entity")
	ErrCatalogInvalid       = NewError(ErrCodeCatalogInvalid, "catalog is invalid")
	ErrMissingSecret        = NewError(ErrCodeMissingSecret, "secret not found")
	ErrMissingRequiredInput = NewError(ErrCodeMissingRequiredInput, "required input missing")
	ErrInvalidDateFormat    = NewError(ErrCodeInvalidDateFormat, "invalid date format")
	ErrUnknownInput         = NewError(ErrCodeUnknownInput, "unknown input")
	ErrConfiguration        = NewError(ErrCodeConfiguration, "invalid input configuration")
	ErrSigningKey           = NewError(ErrCodeSigningKey, "invalid signing key")
	ErrSigning              = NewError(ErrCodeSigning, "signing failed")
	ErrImageFormat          = NewError(ErrCodeImageFormat, "malformed PNG image")
	ErrNetwork              = NewError(ErrCodeNetwork, "network failure")
	ErrIO                   = NewError(ErrCodeIO, "filesystem failure")
)

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var badgeErr *Error
	if errors.As(err, &badgeErr) {
		return badgeErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	if badgeErr, ok := AsError(err); ok {
		return badgeErr.Code
	}
	return ""
}
