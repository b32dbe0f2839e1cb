// Package errors provides the recommender error taxonomy and its BPMN workflow mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Fatal to the request; never retried.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Timeout, connection failure or 5xx; retried with linear backoff.
	ErrCodeTransientNetwork ErrorCode = "TRANSIENT_NETWORK_ERROR"

	// Both are treated as an empty result for the variant that produced them.
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeProviderRejected  ErrorCode = "PROVIDER_REJECTED"

	ErrCodeNoResults        ErrorCode = "NO_RESULTS"
	ErrCodeSearchSuperseded ErrorCode = "SEARCH_SUPERSEDED"
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches another StandardError by code so sentinel comparisons work through wrapping.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewConfigurationError reports a missing credential or unusable setting.
func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfiguration, "Search service is not configured", details, false, nil)
}

// NewTransientNetworkError wraps a timeout, connection failure or 5xx from service.
func NewTransientNetworkError(service string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeTransientNetwork, fmt.Sprintf("Transient failure calling %s", service), details, true, err)
}

// NewMalformedResponseError reports a response body that could not be parsed.
func NewMalformedResponseError(service string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeMalformedResponse, fmt.Sprintf("Malformed response from %s", service), details, false, err)
}

// NewProviderRejectedError reports a non-retryable upstream status.
func NewProviderRejectedError(status int, body string) *StandardError {
	return newError(ErrCodeProviderRejected, "Provider rejected the request", body, false, nil).
		WithMetadata("status", status)
}

func NewNoResultsError(details string) *StandardError {
	return newError(ErrCodeNoResults, "No results available", details, false, nil)
}

// NewSearchSupersededError marks a run whose generation is no longer current.
func NewSearchSupersededError(generation, current uint64) *StandardError {
	return newError(ErrCodeSearchSuperseded, "Search superseded by a newer request",
		fmt.Sprintf("generation: %d, current: %d", generation, current), false, nil).
		WithMetadata("generation", generation)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

func NewCacheUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeCacheUnavailable, "Result cache unavailable", details, true, err)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false, nil)
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfiguration    = &StandardError{Code: ErrCodeConfiguration}
	ErrTransientNetwork = &StandardError{Code: ErrCodeTransientNetwork}
	ErrMalformed        = &StandardError{Code: ErrCodeMalformedResponse}
	ErrProviderRejected = &StandardError{Code: ErrCodeProviderRejected}
	ErrNoResults        = &StandardError{Code: ErrCodeNoResults}
	ErrSuperseded       = &StandardError{Code: ErrCodeSearchSuperseded}
)

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeConfiguration:     "CONFIGURATION_ERROR",
	ErrCodeTransientNetwork:  "SEARCH_UNAVAILABLE",
	ErrCodeMalformedResponse: "SEARCH_UNAVAILABLE",
	ErrCodeProviderRejected:  "SEARCH_REJECTED",
	ErrCodeNoResults:         "NO_RESULTS",
	ErrCodeSearchSuperseded:  "SEARCH_SUPERSEDED",
	ErrCodeInvalidRequest:    "INVALID_REQUEST",
	ErrCodeCacheUnavailable:  "CACHE_UNAVAILABLE",
	ErrCodeInvalidInput:      "INVALID_INPUT",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransientNetwork:
		return 3
	case ErrCodeCacheUnavailable:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Retryable
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "NETWORK") || strings.Contains(codeStr, "RESPONSE") || strings.Contains(codeStr, "PROVIDER"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "RESULTS"):
		return "SEARCH"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
