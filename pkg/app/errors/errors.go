// Package errors maps relayer and devnet API failures onto HTTP responses.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError for the HTTP layer
type Category int

const (
	// CategoryGeneralError is an unexpected failure; its cause is logged, never returned.
	CategoryGeneralError Category = iota
	// CategoryDataError covers malformed input: addresses, amounts, nonces, paging.
	CategoryDataError
	// CategoryUnauthorized means the caller could not be identified
	CategoryUnauthorized
	// CategoryForbidden means a ledger role check rejected the caller
	CategoryForbidden
	// CategoryResourceNotFound covers unknown chains and transfers
	CategoryResourceNotFound
	// CategoryDataConflict covers replayed nonces
	CategoryDataConflict
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryForbidden:
		return "CategoryForbidden"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError is an error with a message safe to show to API clients.
// Err carries the cause for logs.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is matches any target whose message equals the client-facing message
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is reports whether err wraps a ServiceError of category cat
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

func newError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error"
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error", "internal server error")
}

// ResourceNotFoundError returns message to the client with a 404
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message, "resource not found: "+message)
}

// BadRequestError returns message to the client with a 400
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message, "bad request: "+message)
}

// ForbiddenError returns message to the client with a 403
func ForbiddenError(err error, message string) error {
	return newError(CategoryForbidden, err, message, "request forbidden")
}

// UnAuthorizedError returns message to the client with a 401
func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message, "unauthorized")
}

// ConflictError returns message to the client with a 409
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message, "conflict")
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDataConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
