package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrUnauthenticated indicates a failed authenticity check (bad or missing signature/token).
var ErrUnauthenticated = errors.New("authentication failed")

// ErrForbidden indicates the caller is authenticated but not allowed to act on the resource.
var ErrForbidden = errors.New("forbidden")

// ErrInsufficientBalance indicates a conditional debit found no capacity.
// Callers that know the shortfall should wrap it in an InsufficientFundsError.
var ErrInsufficientBalance = errors.New("insufficient balance")

// InsufficientFundsError carries the exact shortfall so callers can react
// (e.g. prompt a top-up). Never downgraded to a generic failure.
type InsufficientFundsError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Balance.String(), e.Required.String())
}

// Unwrap lets errors.Is match ErrInsufficientBalance.
func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientBalance
}

// AppError wraps an underlying error with an HTTP-ish status code and a
// caller-safe message. Full detail stays server-side via Unwrap.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
