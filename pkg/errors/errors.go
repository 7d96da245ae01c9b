package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the failure classes of a monitoring run
type ErrorType string

const (
	ErrorTypeConnection  ErrorType = "connection"
	ErrorTypePageTimeout ErrorType = "page_load_timeout"
	ErrorTypeNavigation  ErrorType = "navigation"
	ErrorTypeAuthWall    ErrorType = "auth_wall"
	ErrorTypeExtraction  ErrorType = "extraction"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeRender      ErrorType = "render"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries the failure class plus enough context to diagnose it from the log
type Error struct {
	Type    ErrorType
	Op      string
	Account string
	URL     string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Account != "" {
		msg += " (@" + e.Account + ")"
	}
	if e.URL != "" {
		msg += " at " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given type
func New(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// WithAccount returns a copy of e tagged with the account handle
func (e *Error) WithAccount(account string) *Error {
	c := *e
	c.Account = account
	return &c
}

// WithURL returns a copy of e tagged with the page URL
func (e *Error) WithURL(url string) *Error {
	c := *e
	c.URL = url
	return &c
}

// TypeOf extracts the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypePageTimeout
	}
	return ErrorTypeUnknown
}

// Is reports whether err is an Error of type t
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return Is(err, ErrorTypeConnection)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypePageTimeout:
		return true
	case ErrorTypeAuthWall, ErrorTypeConfig, ErrorTypeExtraction, ErrorTypeRender, ErrorTypeStorage, ErrorTypeConnection:
		return false
	default:
		return false
	}
}
