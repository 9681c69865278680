package authkit

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure from the remote collaborator.
//
// The original platform distinguishes these cases by HTTP status plus a
// message-prefix convention. That convention is confined to the httpapi
// adapter; everything above the boundary switches on codes, never strings.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota

	// CodeNetwork is a transport failure with no HTTP status (offline,
	// timeout). Never triggers refresh or logout by itself.
	CodeNetwork

	// CodeValidation is a 400 with field-level messages for the caller to
	// render. Not retried.
	CodeValidation

	// CodeBadCredentials is a 401 from login or social login.
	CodeBadCredentials

	// CodeEmailUnverified is the special-cased 401 indicating the account
	// exists but its email address has not been verified.
	CodeEmailUnverified

	// CodeAccessDenied is a 403 carrying a server-provided reason.
	CodeAccessDenied

	// CodeSessionExpired means the refresh exchange failed and the session
	// was cleared.
	CodeSessionExpired
)

// String returns the snake_case name of the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeNetwork:
		return "network"
	case CodeValidation:
		return "validation"
	case CodeBadCredentials:
		return "bad_credentials"
	case CodeEmailUnverified:
		return "email_unverified"
	case CodeAccessDenied:
		return "access_denied"
	case CodeSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// FieldError is one field-level validation message.
type FieldError struct {
	Field   string
	Message string
}

// APIError is a classified failure from the Backend.
type APIError struct {
	Code    ErrorCode
	Status  int // HTTP status, 0 for transport-level failures
	Message string
	Fields  []FieldError

	// UnverifiedEmail is filled by adapters that can recover the address
	// from an email-unverified rejection.
	UnverifiedEmail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authkit: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("authkit: %s: %s", e.Code, e.Message)
}

// AsAPIError unwraps err into an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
