package common

import (
	"errors"
	"net/http"
)

// Error codes shared by handlers.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeUpstreamFailure    = "UPSTREAM_UNAVAILABLE"
	CodeCheckoutInProgress = "CHECKOUT_IN_PROGRESS"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports input the caller can correct. Nothing was mutated.
func Validation(code, message string) *AppError {
	if code == "" {
		code = CodeValidation
	}
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// Upstream reports a failed call to a remote collaborator or the backing store.
func Upstream(message string, err error) *AppError {
	return &AppError{Code: CodeUpstreamFailure, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// Conflict reports a request that collided with concurrent or newer state.
func Conflict(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusConflict}
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// WithDetails attaches structured details to the error.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var target *AppError
	if !errors.As(err, &target) {
		return false
	}
	return target.Code == code
}
