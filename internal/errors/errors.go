package errors

import (
	"errors"
	"fmt"
	"net/http"

	"goseldon/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// Predefined error codes
const (
	CodeConfigInvalid        = "CONFIG_INVALID"
	CodeDatabaseError        = "DATABASE_ERROR"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeParseError           = "PARSE_ERROR"
	CodeBoundComputation     = "BOUND_COMPUTATION_ERROR"
	CodeOptimizerDivergence  = "OPTIMIZER_DIVERGENCE"
	CodeUnsupportedStatistic = "UNSUPPORTED_STATISTIC"
	CodeInsufficientData     = "INSUFFICIENT_DATA"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// DatabaseError wraps a failed ledger operation
func DatabaseError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: CodeDatabaseError, Message: fmt.Sprintf(format, args...), Cause: err}
}

// ValidationError wraps a rejected input document
func ValidationError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: CodeValidationError, Message: fmt.Sprintf(format, args...), Cause: err}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// CodeFor classifies an error by the domain sentinel it wraps, falling back
// to the AppError code
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrParse):
		return CodeParseError
	case errors.Is(err, core.ErrBoundComputation):
		return CodeBoundComputation
	case errors.Is(err, core.ErrOptimizerDivergence):
		return CodeOptimizerDivergence
	case errors.Is(err, core.ErrUnsupportedStatistic):
		return CodeUnsupportedStatistic
	case errors.Is(err, core.ErrInsufficientData):
		return CodeInsufficientData
	case errors.Is(err, core.ErrInvalidDataset):
		return CodeInvalidInput
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// HTTPStatus maps an error code to a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeParseError, CodeInvalidInput, CodeValidationError, CodeUnsupportedStatistic:
		return http.StatusBadRequest
	case CodeInsufficientData:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
