package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Error codes shared by handlers.
const (
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeRateLimited = "ERR_RATE_LIMITED"
	CodeInternal    = "ERR_INTERNAL"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// TooManyRequests creates a 429 error. retryAfter is rounded up to whole seconds.
func TooManyRequests(message string, retryAfter time.Duration) *AppError {
	e := NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
	if retryAfter > 0 {
		secs := int((retryAfter + time.Second - 1) / time.Second)
		e.Params["retry_after"] = strconv.Itoa(secs)
	}
	return e
}
