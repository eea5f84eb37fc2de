package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrInsufficientBalance() *AppError {
	return &AppError{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance", Status: 400}
}

func ErrOutOfStock() *AppError {
	return &AppError{Code: "OUT_OF_STOCK", Message: "requested amount is not in stock right now", Status: 400}
}

func ErrMaintenance() *AppError {
	return &AppError{Code: "MAINTENANCE", Message: "the shop is under maintenance", Status: 503}
}

func ErrTooManyActiveOrders(limit int) *AppError {
	return &AppError{Code: "TOO_MANY_ACTIVE_ORDERS", Message: fmt.Sprintf("you already have %d active orders, wait for them to finish", limit), Status: 400}
}

func ErrAccountBanned() *AppError {
	return &AppError{Code: "ACCOUNT_BANNED", Message: "your account is banned, contact support", Status: 403}
}

func ErrRateLimited() *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: "too many requests", Status: 429}
}

func ErrSignatureInvalid(provider string) *AppError {
	return &AppError{Code: "SIGNATURE_INVALID", Message: fmt.Sprintf("invalid %s webhook signature", provider), Status: 403}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
