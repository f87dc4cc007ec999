package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a ServiceError for the transport layer.
type ErrorKind string

const (
	KindInvalid      ErrorKind = "invalid"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// ServiceError is returned by every service operation that fails for a reason
// the caller should see. Message is safe to show to clients; Cause is not.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// HTTPStatus maps the error kind onto a response status code.
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewInvalidError(msg string) *ServiceError {
	return &ServiceError{Kind: KindInvalid, Message: msg}
}

func NewUnauthorizedError(msg string) *ServiceError {
	return &ServiceError{Kind: KindUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Message: msg}
}

func NewNotFoundError(msg string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: msg}
}

func NewConflictError(msg string) *ServiceError {
	return &ServiceError{Kind: KindConflict, Message: msg}
}

// NewInternalError wraps an unexpected failure. The cause is kept for logging.
func NewInternalError(msg string, cause error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Message: msg, Cause: cause}
}

// AsServiceError converts any error into a *ServiceError, wrapping unknown
// errors as internal failures.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return NewInternalError("Server error", err)
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}
