package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrRecordDeleted    = errors.New("record deleted")
	ErrEngineFailure    = errors.New("storage engine failure")
	ErrStoreClosed      = errors.New("token store closed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// EngineFailure wraps an error reported by the persistence engine
func EngineFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrEngineFailure, err)
}

// IsEngineFailure reports whether err came from the persistence engine
func IsEngineFailure(err error) bool {
	return errors.Is(err, ErrEngineFailure)
}

// Error codes returned to API clients
const (
	CodeNotFound         = "ERR_NOT_FOUND"
	CodeInvalidInput     = "ERR_INVALID_INPUT"
	CodeUnauthorized     = "ERR_UNAUTHORIZED"
	CodeConflict         = "ERR_CONFLICT"
	CodeUnsupportedChain = "ERR_UNSUPPORTED_CHAIN"
	CodeStoreClosed      = "ERR_STORE_CLOSED"
	CodeEngineFailure    = "ERR_ENGINE_FAILURE"
	CodeInternalError    = "ERR_INTERNAL"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrConflict)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// FromError maps domain errors onto an AppError
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, "resource not found", err)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return NewAppError(http.StatusBadRequest, CodeInvalidInput, err.Error(), err)
	case errors.Is(err, ErrUnsupportedChain):
		return NewAppError(http.StatusBadRequest, CodeUnsupportedChain, err.Error(), err)
	case errors.Is(err, ErrStoreClosed):
		return NewAppError(http.StatusServiceUnavailable, CodeStoreClosed, "token store closed", err)
	case errors.Is(err, ErrEngineFailure):
		return NewAppError(http.StatusServiceUnavailable, CodeEngineFailure, "storage engine failure", err)
	}
	return InternalError(err)
}

// NewError creates a new error with a custom message wrapping an existing error
func NewError(message string, err error) error {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidInput,
		Message: message,
		Err:     err,
	}
}
