package store

import (
	"errors"
	"fmt"
)

// ErrorClass classifies store errors. Data problems are never errors in this
// package; every class below describes a wiring defect in the caller.
type ErrorClass string

const (
	// ErrorClassRegistration indicates a malformed or conflicting registration.
	ErrorClassRegistration ErrorClass = "registration"

	// ErrorClassLookup indicates an operation on a type or field name that was
	// never registered.
	ErrorClassLookup ErrorClass = "lookup"

	// ErrorClassIngest indicates an externally-sourced document that could not
	// be decoded at all.
	ErrorClassIngest ErrorClass = "ingest"
)

// Common error codes.
const (
	ErrCodeNotRegistered     = "NOT_REGISTERED"
	ErrCodeFieldUnknown      = "FIELD_UNKNOWN"
	ErrCodeSubUnknown        = "SUB_UNKNOWN"
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeInvalidDefinition = "INVALID_DEFINITION"
	ErrCodeDecode            = "DECODE_ERROR"
	ErrCodeDependencyCycle   = "DEPENDENCY_CYCLE"
)

// Sentinel errors for use with errors.Is. Matching compares class and code.
var (
	ErrNotRegistered     = &Error{Class: ErrorClassLookup, Code: ErrCodeNotRegistered}
	ErrFieldUnknown      = &Error{Class: ErrorClassLookup, Code: ErrCodeFieldUnknown}
	ErrSubUnknown        = &Error{Class: ErrorClassLookup, Code: ErrCodeSubUnknown}
	ErrAlreadyRegistered = &Error{Class: ErrorClassRegistration, Code: ErrCodeAlreadyRegistered}
	ErrInvalidDefinition = &Error{Class: ErrorClassRegistration, Code: ErrCodeInvalidDefinition}
	ErrDecode            = &Error{Class: ErrorClassIngest, Code: ErrCodeDecode}
	ErrDependencyCycle   = &Error{Class: ErrorClassRegistration, Code: ErrCodeDependencyCycle}
)

// Error is a classified store error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Type is the entity type name involved, if any.
	Type string `json:"type,omitempty"`

	// Field is the property or sub-type name involved, if any.
	Field string `json:"field,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Type != "" && e.Field != "" {
		msg = fmt.Sprintf("%s (type=%s, field=%s)", msg, e.Type, e.Field)
	} else if e.Type != "" {
		msg = fmt.Sprintf("%s (type=%s)", msg, e.Type)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithType adds the entity type name to the error.
func (e *Error) WithType(name string) *Error {
	e.Type = name
	return e
}

// WithField adds a property or sub-type name to the error.
func (e *Error) WithField(name string) *Error {
	e.Field = name
	return e
}

func newError(class ErrorClass, code, message string, err error) *Error {
	return &Error{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func notRegistered(name string) *Error {
	return newError(ErrorClassLookup, ErrCodeNotRegistered,
		fmt.Sprintf("entity type %q is not registered", name), nil).WithType(name)
}

func invalidDefinition(name, message string) *Error {
	return newError(ErrorClassRegistration, ErrCodeInvalidDefinition, message, nil).WithType(name)
}

// IsRegistrationError reports whether err is a registration defect.
func IsRegistrationError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassRegistration
	}
	return false
}

// IsLookupError reports whether err came from an unknown type, field or
// sub-type name.
func IsLookupError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassLookup
	}
	return false
}
