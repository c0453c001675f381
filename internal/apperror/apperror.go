package apperror

import (
	"errors"
	"fmt"
)

// Kinds of render failure. Only ErrMissingAvatar, ErrAvatarUnavailable and the
// 500-class kinds ever reach a client; ErrInvalidParameter and
// ErrDecorationUnavailable are recovered where they occur.
var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrMissingAvatar          = errors.New("missing avatar")
	ErrAvatarUnavailable      = errors.New("avatar unavailable")
	ErrDecorationUnavailable  = errors.New("decoration unavailable")
	ErrDecorationRenderFailed = errors.New("decoration render failed")
	ErrEncodeFailed           = errors.New("encode failed")
	ErrRenderFailed           = errors.New("render failed")
)

type AppError struct {
	Err     error  // kind, one of the sentinels above
	Message string // human-readable message
	Field   string // optional: request parameter at fault
	Cause   error  // optional: underlying error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func InvalidParameter(field, value string, cause error) *AppError {
	return &AppError{
		Err:     ErrInvalidParameter,
		Message: fmt.Sprintf("invalid value %q for %s", value, field),
		Field:   field,
		Cause:   cause,
	}
}

func MissingAvatar() *AppError {
	return &AppError{
		Err:     ErrMissingAvatar,
		Message: "missing avatar",
	}
}

func AvatarUnavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrAvatarUnavailable,
		Message: "failed fetch avatar",
		Cause:   cause,
	}
}

func DecorationUnavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrDecorationUnavailable,
		Message: "decoration unavailable",
		Cause:   cause,
	}
}

func DecorationRenderFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrDecorationRenderFailed,
		Message: "failed to render animated decoration",
		Cause:   cause,
	}
}

func EncodeFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrEncodeFailed,
		Message: "failed to encode image",
		Cause:   cause,
	}
}

func RenderFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrRenderFailed,
		Message: message,
		Cause:   cause,
	}
}
