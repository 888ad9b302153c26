package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal request failures. Stale connection writes
// are deliberately absent: losing the timestamp arbitration is a silent
// no-op, not a failure.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindEligibility   ErrorKind = "eligibility"
	KindCapacity      ErrorKind = "capacity"
	KindNotFound      ErrorKind = "not_found"
)

// Error is a coded failure surfaced to the request layer. No operation in
// the core retries; every Error terminates its request.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Defined error codes.
const (
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeGroupNotFound     = "GROUP_NOT_FOUND"
	CodeContextNotFound   = "CONTEXT_NOT_FOUND"
	CodeDuplicateFounders = "DUPLICATE_FOUNDERS"
	CodeFoundersNotLinked = "FOUNDERS_NOT_CONNECTED"
	CodeNotFounder        = "NOT_FOUNDER"
	CodeNotForming        = "GROUP_NOT_FORMING"
	CodeNotEligible       = "NOT_ELIGIBLE"
	CodeNoSponsorships    = "SPONSORSHIPS_EXHAUSTED"
	CodeInvalidKey        = "INVALID_KEY"
	CodeInvalidTimestamp  = "INVALID_TIMESTAMP"
)

// Validationf builds a validation failure with the given code.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Authorizationf builds an authorization failure with the given code.
func Authorizationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a lookup failure with the given code.
func NotFoundf(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotEligible builds the eligibility rejection for a join attempt.
func NotEligible(groupID, userKey string) *Error {
	return &Error{
		Kind:    KindEligibility,
		Code:    CodeNotEligible,
		Message: fmt.Sprintf("user %s is not eligible to join group %s", userKey, groupID),
	}
}

// CapacityExceeded builds the sponsorship exhaustion failure.
func CapacityExceeded(contextID string) *Error {
	return &Error{
		Kind:    KindCapacity,
		Code:    CodeNoSponsorships,
		Message: fmt.Sprintf("context %s has no unused sponsorships", contextID),
	}
}

// KindOf extracts the error kind, or empty for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
