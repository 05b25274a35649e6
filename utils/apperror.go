package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Kind classifies an AppError and decides its HTTP status
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUnavailable
)

// AppError is the error type handlers turn into a JSON response
type AppError struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string, fields ...string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *AppError { return &AppError{Kind: KindNotFound, Message: msg} }

func Conflict(msg string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: msg, Err: err}
}

func Unauthorized(msg string) *AppError { return &AppError{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *AppError { return &AppError{Kind: KindForbidden, Message: msg} }

func Unavailable(msg string, err error) *AppError {
	return &AppError{Kind: KindUnavailable, Message: msg, Err: err}
}

func Internal(msg string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// AsAppError returns err as an *AppError, wrapping anything else as internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Server error", err)
}

// IsDuplicateKey reports whether err is a unique constraint violation from any
// of the supported drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsUnavailable reports whether err means the store could not be reached
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && strings.HasPrefix(string(pqErr.Code), "08") {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// FromDB maps a store error to the taxonomy. what names the entity for the
// not found and conflict messages.
func FromDB(err error, what string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(what + " not found")
	case IsDuplicateKey(err):
		return Conflict(what+" already exists", err)
	case IsUnavailable(err):
		return Unavailable("Database unavailable", err)
	default:
		return Internal("Server error", err)
	}
}
