// Package apierrors provides the error taxonomy shared by the workflow core and
// its HTTP handlers. Every expected failure is an *Error with a Kind; anything
// else reaching a handler is treated as a persistence fault.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	KindPersistence Kind = iota
	KindValidation
	KindInvalidTransition
	KindUnauthorized
	KindForbidden
	KindCapacityExceeded
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindNotFound:
		return "not_found"
	default:
		return "persistence"
	}
}

// Error is a structured, user-presentable error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so errors.Is(err, &Error{Kind: KindForbidden}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// KindOf returns the Kind of err; unknown errors are persistence faults.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindPersistence
}

// Validation reports a missing or malformed field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidationFailed,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// FieldError is one entry of an aggregated validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFields aggregates several field failures into a single error.
func ValidationFields(fields []FieldError) *Error {
	msg := "request validation failed"
	if len(fields) == 1 {
		msg = fields[0].Message
	}
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidationFailed,
		Message: msg,
		Details: map[string]interface{}{"fields": fields},
	}
}

// InvalidTransition reports an action that the current status does not permit.
func InvalidTransition(action, current string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("action %s is not valid for current status %s", action, current),
		Details: map[string]interface{}{"action": action, "current_status": current},
	}
}

// Unauthorized reports a missing or unusable identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden reports an actor lacking the role or party for a request.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// CapacityExceeded reports a denied admission.
func CapacityExceeded(date, priority string, max int) *Error {
	return &Error{
		Kind:    KindCapacityExceeded,
		Code:    CodeCapacityExceeded,
		Message: fmt.Sprintf("capacity full for %s requests on %s (max %d per day)", priority, date, max),
		Details: map[string]interface{}{"date": date, "priority": priority, "max": max},
	}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

// Persistence wraps a store failure. The cause is kept for logging only.
func Persistence(op string, err error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Code:    CodeInternalError,
		Message: fmt.Sprintf("failed to %s", op),
		Err:     err,
	}
}
