package auth

import (
	"errors"
	"fmt"
)

// Failure is the reason a token could not be turned into a principal.
type Failure string

const (
	FailureMissingToken       Failure = "MISSING_TOKEN"
	FailureMalformedToken     Failure = "MALFORMED_TOKEN"
	FailureInvalidSignature   Failure = "INVALID_SIGNATURE"
	FailureTokenExpired       Failure = "TOKEN_EXPIRED"
	FailureTokenRevoked       Failure = "TOKEN_REVOKED"
	FailureUserNotFound       Failure = "USER_NOT_FOUND"
	FailureAccountDeactivated Failure = "ACCOUNT_DEACTIVATED"
)

var failureMessages = map[Failure]string{
	FailureMissingToken:       "no token provided",
	FailureMalformedToken:     "token is malformed",
	FailureInvalidSignature:   "token signature is invalid",
	FailureTokenExpired:       "token has expired",
	FailureTokenRevoked:       "token has been revoked",
	FailureUserNotFound:       "user not found",
	FailureAccountDeactivated: "account is deactivated",
}

// Code is the error code reported to HTTP clients. Malformed tokens and bad
// signatures share INVALID_TOKEN.
func (f Failure) Code() string {
	switch f {
	case FailureMalformedToken, FailureInvalidSignature:
		return "INVALID_TOKEN"
	}
	return string(f)
}

func (f Failure) Message() string {
	if m, ok := failureMessages[f]; ok {
		return m
	}
	return "authentication failed"
}

// Error is a typed authentication failure. Two Errors match under errors.Is
// when their Failure kinds are equal, so the exported sentinels below can be
// used as match targets.
type Error struct {
	Failure Failure
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Failure.Message(), e.Err)
	}
	return e.Failure.Message()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Failure == e.Failure
}

var (
	ErrMissingToken       = &Error{Failure: FailureMissingToken}
	ErrMalformedToken     = &Error{Failure: FailureMalformedToken}
	ErrInvalidSignature   = &Error{Failure: FailureInvalidSignature}
	ErrTokenExpired       = &Error{Failure: FailureTokenExpired}
	ErrTokenRevoked       = &Error{Failure: FailureTokenRevoked}
	ErrUserNotFound       = &Error{Failure: FailureUserNotFound}
	ErrAccountDeactivated = &Error{Failure: FailureAccountDeactivated}
)

func newError(f Failure, cause error) *Error {
	return &Error{Failure: f, Err: cause}
}

// FailureOf extracts the failure kind from err, if it carries one.
func FailureOf(err error) (Failure, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Failure, true
	}
	return "", false
}

// Authorization errors.
var (
	ErrNotAdmin             = errors.New("not authorized as admin")
	ErrSelfDeleteNotAllowed = errors.New("cannot delete your own account")
)
