package apierrors

import (
	"net/http"
	"sync"
)

// Error codes are namespaced by component.
const (
	CodeUnauthorized = "core:unauthorized"
	CodeForbidden    = "core:forbidden"

	CodeInvalidRequest   = "core:invalid_request"
	CodeValidationFailed = "core:validation_failed"
	CodeInvalidID        = "core:invalid_id"

	CodeNotFound = "core:not_found"

	CodeInternalError = "core:internal_error"

	CodeInvalidTransition = "workflow:invalid_transition"
	CodeCapacityExceeded  = "capacity:exceeded"
)

// ErrorCode is a registered code with its default message and HTTP status.
type ErrorCode struct {
	Code       string
	Message    string
	HTTPStatus int
}

type registry struct {
	mu    sync.RWMutex
	codes map[string]ErrorCode
}

// Registry holds every known error code.
var Registry = &registry{codes: make(map[string]ErrorCode)}

// Register adds or replaces a code.
func (r *registry) Register(e ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[e.Code] = e
}

// HTTPStatus returns the status for code, 500 when unregistered.
func (r *registry) HTTPStatus(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.codes[code]; ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Message returns the default message for code.
func (r *registry) Message(code string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.codes[code]; ok {
		return e.Message
	}
	return "Internal server error"
}

var coreErrors = []ErrorCode{
	{Code: CodeUnauthorized, Message: "Authentication required", HTTPStatus: http.StatusUnauthorized},
	{Code: CodeForbidden, Message: "Permission denied", HTTPStatus: http.StatusForbidden},

	{Code: CodeInvalidRequest, Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: CodeValidationFailed, Message: "Request validation failed", HTTPStatus: http.StatusBadRequest},
	{Code: CodeInvalidID, Message: "Invalid ID format", HTTPStatus: http.StatusBadRequest},

	{Code: CodeNotFound, Message: "Resource not found", HTTPStatus: http.StatusNotFound},

	{Code: CodeInternalError, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},

	{Code: CodeInvalidTransition, Message: "Action not valid for the current status", HTTPStatus: http.StatusBadRequest},
	{Code: CodeCapacityExceeded, Message: "Capacity full for this date and priority", HTTPStatus: http.StatusConflict},
}

func init() {
	for _, e := range coreErrors {
		Registry.Register(e)
	}
}
