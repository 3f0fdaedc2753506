package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/fzdarsky/hiveauth/pkg/srp"
)

// Kind classifies engine failures. The set is closed so callers can switch on it.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindInvalidUsername
	KindInvalidPassword
	KindInvalidDeviceAuthentication
	KindInvalid2FACode
	KindUnsupportedChallenge
	KindZeroSafetyCheckFailed
	KindTransport
	KindTokenRefreshFailed
	// KindNotAuthenticated means the operation needs tokens the session does not hold.
	KindNotAuthenticated
	// KindProviderRejected covers provider errors with no more specific kind,
	// such as an unconfirmed user or a password reset requirement.
	KindProviderRejected
)

var kindNames = map[Kind]string{
	KindUnknown:                     "unknown",
	KindInvalidUsername:             "invalid username",
	KindInvalidPassword:             "invalid password",
	KindInvalidDeviceAuthentication: "invalid device authentication",
	KindInvalid2FACode:              "invalid 2FA code",
	KindUnsupportedChallenge:        "unsupported challenge",
	KindZeroSafetyCheckFailed:       "zero safety check failed",
	KindTransport:                   "transport error",
	KindTokenRefreshFailed:          "token refresh failed",
	KindNotAuthenticated:            "not authenticated",
	KindProviderRejected:            "rejected by provider",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every Session operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "auth"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare kind sentinel such as ErrInvalidPassword.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidUsername             = &Error{Kind: KindInvalidUsername}
	ErrInvalidPassword             = &Error{Kind: KindInvalidPassword}
	ErrInvalidDeviceAuthentication = &Error{Kind: KindInvalidDeviceAuthentication}
	ErrInvalid2FACode              = &Error{Kind: KindInvalid2FACode}
	ErrUnsupportedChallenge        = &Error{Kind: KindUnsupportedChallenge}
	ErrZeroSafetyCheckFailed       = &Error{Kind: KindZeroSafetyCheckFailed}
	ErrTransport                   = &Error{Kind: KindTransport}
	ErrTokenRefreshFailed          = &Error{Kind: KindTokenRefreshFailed}
	ErrNotAuthenticated            = &Error{Kind: KindNotAuthenticated}
	ErrProviderRejected            = &Error{Kind: KindProviderRejected}
)

// KindOf returns the kind of an engine error, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a caller may retry the operation with a fresh attempt.
// Only transport failures qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}

// step identifies where in a flow a provider call was made; the same provider
// error means different things at different steps.
type step int

const (
	stepInitiate step = iota
	stepPassword
	stepMFA
	stepDevice
	stepRefresh
	stepRegister
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify maps a failure from the provider or the SRP math to an engine error.
func classify(op string, st step, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, srp.ErrZeroSafetyCheck) {
		return newError(KindZeroSafetyCheckFailed, op, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransport, op, err)
	}

	var perr *cognito.ProviderError
	if !errors.As(err, &perr) {
		return newError(KindTransport, op, err)
	}

	switch perr.Code() {
	case cognito.ErrTypeUserNotFound:
		if st == stepRefresh {
			return newError(KindTokenRefreshFailed, op, err)
		}
		return newError(KindInvalidUsername, op, err)
	case cognito.ErrTypeCodeMismatch, cognito.ErrTypeExpiredCode:
		return newError(KindInvalid2FACode, op, err)
	case cognito.ErrTypeNotAuthorized:
		return newError(notAuthorizedKind(st), op, err)
	case cognito.ErrTypeResourceNotFound:
		if st == stepDevice || st == stepRegister {
			return newError(KindInvalidDeviceAuthentication, op, err)
		}
	}

	if perr.Retryable() {
		return newError(KindTransport, op, err)
	}
	if st == stepRefresh {
		return newError(KindTokenRefreshFailed, op, err)
	}
	return newError(KindProviderRejected, op, err)
}

func notAuthorizedKind(st step) Kind {
	switch st {
	case stepMFA:
		return KindInvalid2FACode
	case stepDevice:
		return KindInvalidDeviceAuthentication
	case stepRefresh:
		return KindTokenRefreshFailed
	case stepRegister:
		return KindNotAuthenticated
	default:
		return KindInvalidPassword
	}
}
