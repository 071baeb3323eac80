package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotConnected       = errors.New("payment backend not connected")
	ErrInvoice            = errors.New("invoice creation failed")
	ErrSignatureInvalid   = errors.New("webhook signature invalid")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AppError represents an application error with HTTP status and stable code
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

// InvalidRequest marks a caller error; never retried, always 4xx.
func InvalidRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_INVALID_REQUEST", message, ErrInvalidRequest)
}

// NotConnected marks the backend as unavailable; retryable by the caller.
func NotConnected() *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_NOT_CONNECTED", "payment backend not connected", ErrNotConnected)
}

// Invoice wraps a backend failure after a valid request; retryable.
func Invoice(message string, err error) *AppError {
	return NewAppError(http.StatusBadGateway, "ERR_INVOICE", message, errors.Join(ErrInvoice, err))
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", message, ErrNotFound)
}

func SignatureInvalid(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "ERR_SIGNATURE_INVALID", message, ErrSignatureInvalid)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "ERR_UNAUTHORIZED", message, ErrUnauthorized)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "ERR_INTERNAL", "internal server error", err)
}
