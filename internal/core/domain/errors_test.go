package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("CD-TEST-1000", "test message"),
			expected: "[CD-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("CD-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[CD-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("CD-TEST-1002", "test message").WithCause(fmt.Errorf("disk full")),
			expected: "[CD-TEST-1002] test message: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("CD-TEST-1000", "message 1")
	err2 := NewDomainError("CD-TEST-1000", "message 2")
	err3 := NewDomainError("CD-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("login: %w", ErrStorageError.WithCause(fmt.Errorf("io")))
	if !errors.Is(wrapped, ErrStorageError) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestDomainError_CopiesDoNotMutateOriginal(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	withCause := ErrStorageError.WithCause(cause)
	withDetails := ErrStorageError.WithDetails("set token")

	if ErrStorageError.Cause != nil || ErrStorageError.Details != "" {
		t.Fatal("sentinel error was mutated")
	}
	if errors.Unwrap(withCause) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(withCause), cause)
	}
	if withDetails.Code != ErrStorageError.Code {
		t.Errorf("Code = %q, want %q", withDetails.Code, ErrStorageError.Code)
	}
}

func TestIsDomainError(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrTokenExpired)

	if !IsDomainError(err, "") {
		t.Error("IsDomainError(err, \"\") = false, want true")
	}
	if !IsDomainError(err, "CD-TOKN-4011") {
		t.Error("IsDomainError should match code")
	}
	if IsDomainError(err, "CD-TOKN-4000") {
		t.Error("IsDomainError should not match other code")
	}
	if IsDomainError(fmt.Errorf("plain"), "") {
		t.Error("IsDomainError should be false for plain errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrLoginRejected); got != "CD-BACK-4010" {
		t.Errorf("GetErrorCode() = %q, want %q", got, "CD-BACK-4010")
	}
	if got := GetErrorCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
}
