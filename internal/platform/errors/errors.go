// Package errors defines typed application errors for the client core.
package errors

import (
	stderrors "errors"
	"strings"
)

// Kind classifies failures for consistent handling across the client.
type Kind string

const (
	KindUnknown Kind = "unknown"
	// KindInvalidInput marks client-detected validation failures that never
	// reach the network.
	KindInvalidInput Kind = "invalid_input"
	// KindUnavailable marks transport failures and timeouts; retryable.
	KindUnavailable Kind = "unavailable"
	// KindBusinessRule marks server-side rejections such as insufficient
	// funds.
	KindBusinessRule Kind = "business_rule"
	// KindUnauthenticated marks an invalid or expired session.
	KindUnauthenticated Kind = "unauthenticated"
	// KindNotFound marks a missing remote resource.
	KindNotFound Kind = "not_found"
	// KindInFlight marks a rejected intent because the same action slot
	// already has a pending mutation.
	KindInFlight Kind = "in_flight"
)

// Machine-readable reason codes carried by business-rule errors.
const (
	CodeInsufficientFunds = "InsufficientFunds"
	CodeOwnPost           = "OwnPost"
	CodeSelfTransfer      = "SelfTransfer"
)

// Error is a typed client failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// Error renders the human-readable message.
func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// E builds a typed Error.
func E(kind Kind, message string) error {
	return Error{Kind: kind, Message: message}
}

// EC builds a typed Error with a machine-readable reason code.
func EC(kind Kind, code string, message string) error {
	return Error{Kind: kind, Code: strings.TrimSpace(code), Message: message}
}

// KindOf extracts the Kind from err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var appErr Error
	if !stderrors.As(err, &appErr) {
		return KindUnknown
	}
	return appErr.Kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf extracts the machine-readable reason code, or empty.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr Error
	if !stderrors.As(err, &appErr) {
		return ""
	}
	return appErr.Code
}

// Retryable reports whether the failure is worth retrying automatically.
// Only transport-level unavailability qualifies; validation and business
// rule failures are final until the user changes the input.
func Retryable(err error) bool {
	return IsKind(err, KindUnavailable)
}
