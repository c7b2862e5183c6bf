package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the classification and feed paths.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeTransientProvider     = "TRANSIENT_PROVIDER_ERROR"
	CodeTerminalClassifyFail  = "TERMINAL_CLASSIFICATION_FAILURE"
	CodeStoreWriteFailed      = "STORE_WRITE_FAILED"
	CodeFeedDeliveryFailed    = "FEED_DELIVERY_FAILED"
	CodeFetchFailed           = "FETCH_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError marks malformed or out-of-range input, including
// provider responses that violate the classification contract.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewTransientProviderError marks a provider failure worth retrying.
func NewTransientProviderError(err error) error {
	return &DomainError{
		Code:       CodeTransientProvider,
		Message:    "inference provider temporarily unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewTerminalClassificationFailure marks a classification run that exhausted
// its retry budget.
func NewTerminalClassificationFailure(attempts int, err error) error {
	return &DomainError{
		Code:       CodeTerminalClassifyFail,
		Message:    fmt.Sprintf("classification failed after %d attempts", attempts),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"attempts": attempts},
		Err:        err,
	}
}

// NewStoreWriteError marks a failed store mutation.
func NewStoreWriteError(err error) error {
	return &DomainError{
		Code:       CodeStoreWriteFailed,
		Message:    "store write failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewFeedDeliveryError marks a dropped or failed feed publication. It is
// logged by the feed, never returned to the writer.
func NewFeedDeliveryError(subscriberID string, err error) error {
	return &DomainError{
		Code:       CodeFeedDeliveryFailed,
		Message:    "feed delivery failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"subscriber_id": subscriberID},
		Err:        err,
	}
}

// NewFetchError marks a failed snapshot or refresh fetch; callers retain
// their last good collection and may retry.
func NewFetchError(err error) error {
	return &DomainError{
		Code:       CodeFetchFailed,
		Message:    "fetch failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsRetryableClassification reports whether a classification attempt may be
// retried: validation failures and transient provider failures both qualify,
// terminal failures do not.
func IsRetryableClassification(err error) bool {
	return HasCode(err, CodeValidationFailed) || HasCode(err, CodeTransientProvider)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
