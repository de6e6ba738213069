// Package domain defines the core domain models for crmdesk.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form CD-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "CD-SESS-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Session errors (SESS).
var (
	// ErrNotAuthenticated indicates an operation needs a logged-in session.
	ErrNotAuthenticated = NewDomainError("CD-SESS-4010", "not authenticated")

	// ErrSessionIncomplete indicates storage held only part of a session.
	ErrSessionIncomplete = NewDomainError("CD-SESS-4011", "stored session incomplete")

	// ErrProfileValidation indicates the login profile is invalid.
	ErrProfileValidation = NewDomainError("CD-SESS-4001", "profile validation failed")

	// ErrStoreClosed indicates the session store has been closed.
	ErrStoreClosed = NewDomainError("CD-SESS-5030", "session store closed")
)

// Token errors (TOKN).
var (
	// ErrTokenMissing indicates no token was provided or stored.
	ErrTokenMissing = NewDomainError("CD-TOKN-4000", "token missing")

	// ErrTokenMalformed indicates the token could not be decoded.
	ErrTokenMalformed = NewDomainError("CD-TOKN-4001", "malformed token")

	// ErrTokenNoExpiry indicates the token carries no decodable expiry.
	ErrTokenNoExpiry = NewDomainError("CD-TOKN-4002", "token has no expiry")

	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = NewDomainError("CD-TOKN-4011", "token expired")
)

// System errors (SYS).
var (
	// ErrStorageError indicates a durable storage failure.
	ErrStorageError = NewDomainError("CD-SYS-5001", "storage error")

	// ErrStorageTimeout indicates a storage operation exceeded its deadline.
	ErrStorageTimeout = NewDomainError("CD-SYS-5040", "storage timeout")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("CD-SYS-5000", "internal error")
)

// Argument errors (ARG).
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("CD-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("CD-ARG-1002", "missing required argument")
)

// Backend errors (BACK).
var (
	// ErrBackendUnavailable indicates the backend could not be reached.
	ErrBackendUnavailable = NewDomainError("CD-BACK-5030", "backend unavailable")

	// ErrLoginRejected indicates the backend refused the credentials.
	ErrLoginRejected = NewDomainError("CD-BACK-4010", "login rejected")

	// ErrBackendResponse indicates an unexpected backend response.
	ErrBackendResponse = NewDomainError("CD-BACK-5020", "unexpected backend response")

	// ErrRateLimited indicates too many login attempts in a short window.
	ErrRateLimited = NewDomainError("CD-BACK-4290", "too many login attempts")
)
