// Package core provides shared types and the error taxonomy for flashdeck.
package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure into one of the fixed taxonomy kinds.
type ErrorKind string

const (
	// ErrorKindConfiguration indicates a required credential or setting is missing at construction
	ErrorKindConfiguration ErrorKind = "configuration_error"
	// ErrorKindValidation indicates a malformed request caught before any network activity
	ErrorKindValidation ErrorKind = "validation_error"
	// ErrorKindAuthentication indicates the gateway rejected credentials
	ErrorKindAuthentication ErrorKind = "authentication_error"
	// ErrorKindBadRequest indicates the gateway rejected the request as malformed (non-auth 4xx)
	ErrorKindBadRequest ErrorKind = "bad_request_error"
	// ErrorKindRateLimit indicates rate limiting or credit exhaustion
	ErrorKindRateLimit ErrorKind = "rate_limit_error"
	// ErrorKindServer indicates the gateway returned 5xx after retries were exhausted
	ErrorKindServer ErrorKind = "server_error"
	// ErrorKindNetwork indicates a transport-level failure after retries were exhausted
	ErrorKindNetwork ErrorKind = "network_error"
	// ErrorKindParsing indicates an unparseable or structurally invalid response body
	ErrorKindParsing ErrorKind = "parsing_error"
	// ErrorKindAPI indicates a gateway-signaled error not matching a more specific kind
	ErrorKindAPI ErrorKind = "api_error"
	// ErrorKindNotFound indicates a missing application resource (deck, card)
	ErrorKindNotFound ErrorKind = "not_found_error"
)

// Error is the single error type for all flashdeck failures.
// Kind decides handling; StatusCode carries the upstream status where one exists.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`

	// RequestedTokens/AvailableTokens are filled for credit-exhaustion rate
	// limit errors when the gateway message carries the counts, so callers
	// can tell the end user how far over budget they are.
	RequestedTokens int `json:"requested_tokens,omitempty"`
	AvailableTokens int `json:"available_tokens,omitempty"`

	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// CreditExhausted reports whether this rate limit error is the prepaid-credit
// variant rather than plain request throttling.
func (e *Error) CreditExhausted() bool {
	return e.Kind == ErrorKindRateLimit && e.StatusCode == http.StatusPaymentRequired
}

// HTTPStatusCode returns the status the HTTP layer should answer with.
// Authentication failures map to 500 so credential details never reach
// end users; generic gateway errors map to 502 when the upstream failed.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindValidation, ErrorKindBadRequest:
		return http.StatusBadRequest
	case ErrorKindRateLimit:
		if e.CreditExhausted() {
			return http.StatusPaymentRequired
		}
		return http.StatusTooManyRequests
	case ErrorKindNetwork:
		return http.StatusServiceUnavailable
	case ErrorKindServer:
		return http.StatusBadGateway
	case ErrorKindAPI:
		if e.StatusCode >= 500 {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case ErrorKindNotFound:
		return http.StatusNotFound
	default:
		// configuration, authentication, parsing
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the response envelope returned by the HTTP layer.
func (e *Error) ToJSON() map[string]interface{} {
	inner := map[string]interface{}{
		"type":    e.Kind,
		"message": e.publicMessage(),
	}
	if e.Kind == ErrorKindRateLimit && e.RequestedTokens > 0 {
		inner["requested_tokens"] = e.RequestedTokens
		inner["available_tokens"] = e.AvailableTokens
	}
	return map[string]interface{}{"error": inner}
}

// publicMessage hides credential detail for auth failures; everything else
// is safe to show verbatim.
func (e *Error) publicMessage() string {
	if e.Kind == ErrorKindAuthentication || e.Kind == ErrorKindConfiguration {
		return "the server is not configured correctly to reach the completion gateway"
	}
	return e.Message
}

// NewConfigurationError creates an error for a missing required setting.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: ErrorKindConfiguration, Message: message}
}

// NewValidationError creates an error for a request rejected before any network call.
func NewValidationError(message string) *Error {
	return &Error{Kind: ErrorKindValidation, Message: message, StatusCode: http.StatusBadRequest}
}

// NewAuthenticationError creates an error for rejected gateway credentials.
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: ErrorKindAuthentication, Message: message, StatusCode: http.StatusUnauthorized}
}

// NewBadRequestError creates an error for a request the gateway rejected as malformed.
func NewBadRequestError(statusCode int, message string) *Error {
	return &Error{Kind: ErrorKindBadRequest, Message: message, StatusCode: statusCode}
}

// NewRateLimitError creates a plain throttling error (429).
func NewRateLimitError(message string) *Error {
	return &Error{Kind: ErrorKindRateLimit, Message: message, StatusCode: http.StatusTooManyRequests}
}

// NewCreditExhaustedError creates the credit-exhaustion rate limit variant (402).
// The original gateway message is preserved verbatim.
func NewCreditExhaustedError(message string, requested, available int) *Error {
	return &Error{
		Kind:            ErrorKindRateLimit,
		Message:         message,
		StatusCode:      http.StatusPaymentRequired,
		RequestedTokens: requested,
		AvailableTokens: available,
	}
}

// NewServerError creates an error for an upstream 5xx that survived retries.
func NewServerError(statusCode int, message string) *Error {
	return &Error{Kind: ErrorKindServer, Message: message, StatusCode: statusCode}
}

// NewNetworkError creates an error for a transport failure that survived retries.
func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: ErrorKindNetwork, Message: message, Err: err}
}

// NewParsingError creates an error for an unparseable or malformed response body.
func NewParsingError(message string, err error) *Error {
	return &Error{Kind: ErrorKindParsing, Message: message, Err: err}
}

// NewAPIError creates a generic gateway error carrying the upstream status.
func NewAPIError(statusCode int, message string) *Error {
	if statusCode == 0 {
		statusCode = http.StatusBadRequest
	}
	return &Error{Kind: ErrorKindAPI, Message: message, StatusCode: statusCode}
}

// NewNotFoundError creates an error for a missing deck or card.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: message, StatusCode: http.StatusNotFound}
}
