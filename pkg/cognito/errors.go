package cognito

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider error types the engine distinguishes.
const (
	ErrTypeNotAuthorized          = "NotAuthorizedException"
	ErrTypeUserNotFound           = "UserNotFoundException"
	ErrTypeCodeMismatch           = "CodeMismatchException"
	ErrTypeExpiredCode            = "ExpiredCodeException"
	ErrTypeResourceNotFound       = "ResourceNotFoundException"
	ErrTypeInvalidParameter       = "InvalidParameterException"
	ErrTypeTooManyRequests        = "TooManyRequestsException"
	ErrTypeUserNotConfirmed       = "UserNotConfirmedException"
	ErrTypePasswordResetRequired  = "PasswordResetRequiredException"
	ErrTypeInternalError          = "InternalErrorException"
	ErrTypeDeviceAlreadyConfirmed = "DeviceAlreadyConfirmedException"
)

// ProviderError is an error response returned by the identity provider.
type ProviderError struct {
	Type       string `json:"__type"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Code(), e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Code(), e.StatusCode)
}

// Code returns the bare error type, without namespace or documentation suffix.
// "com.amazonaws.cognito#NotAuthorizedException" and
// "NotAuthorizedException:http://internal.amazon.com/" both become
// "NotAuthorizedException".
func (e *ProviderError) Code() string {
	code := e.Type
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}
	return code
}

// Retryable reports whether the provider signalled a transient condition.
func (e *ProviderError) Retryable() bool {
	switch e.Code() {
	case ErrTypeTooManyRequests, ErrTypeInternalError:
		return true
	}
	return e.StatusCode >= 500
}

// DecodeError builds a ProviderError from an error response body.
// headerType is the X-Amzn-ErrorType header, used when the body carries no type.
func DecodeError(statusCode int, headerType string, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: statusCode}

	var raw struct {
		Type         string `json:"__type"`
		Message      string `json:"message"`
		MessageUpper string `json:"Message"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		perr.Type = raw.Type
		perr.Message = raw.Message
		if perr.Message == "" {
			perr.Message = raw.MessageUpper
		}
	}

	if perr.Type == "" {
		perr.Type = headerType
	}
	if perr.Type == "" {
		perr.Type = "UnknownError"
	}

	return perr
}

// IsType reports whether err is a ProviderError of any of the given types.
func IsType(err error, types ...string) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	code := perr.Code()
	for _, t := range types {
		if code == t {
			return true
		}
	}
	return false
}
