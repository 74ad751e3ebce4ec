package http

import (
	"fmt"
	"net/http"
)

// Error codes returned in AppError.Code.
const (
	CodeBadRequest         = "ERR_BAD_REQUEST"
	CodeFormat             = "ERR_FORMAT"
	CodeNotFound           = "ERR_NOT_FOUND"
	CodeRateLimited        = "ERR_RATE_LIMITED"
	CodeTimeout            = "ERR_TIMEOUT"
	CodeInsufficientData   = "ERR_INSUFFICIENT_DATA"
	CodeInvalidSeries      = "ERR_INVALID_SERIES"
	CodeAlignment          = "ERR_ALIGNMENT"
	CodeOptimizationFailed = "ERR_OPTIMIZATION_FAILED"
)

// AppError is an error the API returns to the client as-is, with its status.
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

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithParam attaches a detail the client can render, such as the bar count
// that was available.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs. It is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

// FormatError reports a query or body field that does not parse.
func FormatError(field, message string) *AppError {
	return NewAppError(CodeFormat, field, message, http.StatusBadRequest)
}

// UnprocessableError is a 422 for well-formed input the analytics cannot use.
func UnprocessableError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusUnprocessableEntity)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

func TimeoutError(message string) *AppError {
	return NewAppError(CodeTimeout, "", message, http.StatusGatewayTimeout)
}
