// Package apperror defines the error taxonomy shared by the chat modules.
//
// Every error carries a Kind (the class of failure, which decides how a
// transport reacts) and a Code (a stable, machine-checkable reason that
// clients can switch on).
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindAuthFailure   Kind = "auth_failure"
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindPersistence   Kind = "persistence"
	KindTransport     Kind = "transport"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

// Reason codes used across modules.
const (
	CodeMissingToken       = "missing_token"
	CodeInvalidToken       = "invalid_token"
	CodeExpiredToken       = "expired_token"
	CodeUserNotFound       = "user_not_found"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_exists"
	CodeInvalidUsername    = "invalid_username"
	CodeInvalidPassword    = "invalid_password"
	CodeInvalidRequest     = "invalid_request"
	CodeEmptyMessage       = "empty_message"
	CodeMessageTooLong     = "message_too_long"
	CodeInvalidRoom        = "invalid_room"
	CodeNotInRoom          = "not_in_room"
	CodeConnectionGone     = "connection_gone"
	CodeNotOwner           = "not_owner"
	CodeNoIDs              = "no_ids"
	CodeMessagesNotFound   = "messages_not_found"
	CodePersistenceFailed  = "persistence_failed"
	CodeRateLimited        = "rate_limited"
	CodeFileTooLarge       = "file_too_large"
	CodeInvalidFileType    = "invalid_file_type"
	CodeBlobNotFound       = "blob_not_found"
	CodeStorageFailed      = "storage_failed"
	CodeServiceUnavailable = "service_unavailable"
	CodeInternal           = "internal_error"
)

// Error is a classified failure with a stable reason code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New creates an Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an Error that keeps err as its cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the reason code of err, or CodeInternal when err is not classified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of err. Unclassified errors
// get a generic message so internals are not leaked to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred"
}

// Fault is the wire form of an Error, carried inside request-reply
// responses so kind and code survive the service bus.
type Fault struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToFault converts err to its wire form. Unclassified errors become
// internal faults with a generic message.
func ToFault(err error) *Fault {
	if err == nil {
		return nil
	}
	return &Fault{Kind: KindOf(err), Code: CodeOf(err), Message: MessageOf(err)}
}

// Err converts the fault back to an error. A nil fault yields nil.
func (f *Fault) Err() error {
	if f == nil {
		return nil
	}
	return New(f.Kind, f.Code, f.Message)
}

// HTTPStatus maps a kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthFailure:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
