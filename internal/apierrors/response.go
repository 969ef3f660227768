package apierrors

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError represents the JSON error response structure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Respond writes err as the JSON error envelope. Errors that are not *Error,
// and persistence faults, are logged and answered with a generic 500 body.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind == KindPersistence {
		if logger != nil {
			logger.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		RespondCode(c, CodeInternalError)
		return
	}

	code := apiErr.Code
	if code == "" {
		code = codeForKind(apiErr.Kind)
	}
	message := apiErr.Message
	if message == "" {
		message = Registry.Message(code)
	}
	c.JSON(Registry.HTTPStatus(code), gin.H{"error": APIError{
		Code:    code,
		Message: message,
		Details: apiErr.Details,
	}})
}

// RespondCode sends an error response using a registered error code
func RespondCode(c *gin.Context, code string) {
	c.JSON(Registry.HTTPStatus(code), gin.H{"error": APIError{Code: code, Message: Registry.Message(code)}})
}

// RespondMessage sends an error response with a custom message
func RespondMessage(c *gin.Context, code, message string) {
	c.JSON(Registry.HTTPStatus(code), gin.H{"error": APIError{Code: code, Message: message}})
}

func codeForKind(k Kind) string {
	switch k {
	case KindValidation:
		return CodeValidationFailed
	case KindInvalidTransition:
		return CodeInvalidTransition
	case KindUnauthorized:
		return CodeUnauthorized
	case KindForbidden:
		return CodeForbidden
	case KindCapacityExceeded:
		return CodeCapacityExceeded
	case KindNotFound:
		return CodeNotFound
	default:
		return CodeInternalError
	}
}
