package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"

	ErrorTypeAccessDenied ErrorType = "ACCESS_DENIED"
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeUpstream     ErrorType = "UPSTREAM_ERROR"
	ErrorTypeTimeoutSoft  ErrorType = "TIMEOUT_SOFT"
	ErrorTypeExternalTool ErrorType = "EXTERNAL_TOOL_ERROR"
	ErrorTypeRateLimited  ErrorType = "RATE_LIMITED"
)

// MaxUserMessageLen caps error text shown in chat.
const MaxUserMessageLen = 300

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

// newError creates a new CustomError
func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// NewAccessDenied is returned when the sender is not in the approved set.
func NewAccessDenied(chatID int64) *CustomError {
	return newError(ErrorTypeAccessDenied, fmt.Sprintf("chat %d is not approved", chatID), http.StatusForbidden, nil)
}

// NewValidationError reports bad user input. The caller re-prompts.
func NewValidationError(message string) *CustomError {
	return newError(ErrorTypeValidation, message, http.StatusBadRequest, nil)
}

// NewUpstreamError reports a non-success or malformed response from a remote API.
func NewUpstreamError(message string, internal error) *CustomError {
	return newError(ErrorTypeUpstream, message, http.StatusBadGateway, internal)
}

// NewTimeoutSoft reports exhausted polling. It is never fatal.
func NewTimeoutSoft(message string) *CustomError {
	return newError(ErrorTypeTimeoutSoft, message, http.StatusGatewayTimeout, nil)
}

// NewExternalToolError reports a failed renderer or probe invocation.
func NewExternalToolError(message string, internal error) *CustomError {
	return newError(ErrorTypeExternalTool, message, http.StatusInternalServerError, internal)
}

// NewRateLimited reports a repeated request inside its cooldown.
func NewRateLimited(message string) *CustomError {
	return newError(ErrorTypeRateLimited, message, http.StatusTooManyRequests, nil)
}

// IsType reports whether any error in err's chain is a CustomError of type t.
func IsType(err error, t ErrorType) bool {
	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr.Type == t
	}
	return false
}

// UserMessage renders err for a chat reply, truncated to MaxUserMessageLen runes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error(), MaxUserMessageLen)
}

// Truncate cuts s to max runes and appends an ellipsis when it was longer.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	if !stderrors.As(err, &customErr) {
		customErr = New500Error(err)
	}

	// Log internal server errors
	if customErr.StatusCode >= http.StatusInternalServerError {
		log.Error().
			Err(customErr.Internal).
			Str("type", string(customErr.Type)).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	c.JSON(customErr.StatusCode, gin.H{
		"error": gin.H{
			"type":    customErr.Type,
			"message": customErr.Message,
		},
	})
}

// LogAndReturn500 logs an internal error and returns a 500 error
func LogAndReturn500(internal error) *CustomError {
	log.Error().Err(internal).Msg("Internal Server Error")
	return New500Error(internal)
}
