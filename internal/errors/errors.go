// Package errors defines the error taxonomy of the scoring service and the
// mapping from those errors to HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// classify with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
)

// =============================================================================
// Validation errors
// =============================================================================

// ValidationKind identifies which rule rejected a value.
type ValidationKind string

const (
	KindNotNullable     ValidationKind = "not_nullable"
	KindTypeMismatch    ValidationKind = "type_mismatch"
	KindPatternMismatch ValidationKind = "pattern_mismatch"
	KindDateParse       ValidationKind = "date_parse"
	KindAgeRange        ValidationKind = "age_range"
	KindMissingField    ValidationKind = "missing_field"
	KindUnknownMethod   ValidationKind = "unknown_method"
	KindInvalidRequest  ValidationKind = "invalid_request"
)

// ValidationError is returned when input does not satisfy a field constraint.
type ValidationError struct {
	Field   string
	Kind    ValidationKind
	Message string
}

// NewValidationError creates a validation error for field.
func NewValidationError(field string, kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WithField returns a copy of e attributed to field. Errors raised by a
// FieldSpec do not know the slot name; the schema fills it in.
func (e *ValidationError) WithField(field string) *ValidationError {
	cp := *e
	cp.Field = field
	return &cp
}

// MissingField reports an absent required field.
func MissingField(field string) *ValidationError {
	return NewValidationError(field, KindMissingField, "missed required field")
}

// UnknownMethod reports a method name with no registered handler.
func UnknownMethod(method string) *ValidationError {
	return NewValidationError("method", KindUnknownMethod, "invalid method %q", method)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// KindOf returns the validation kind carried by err, or "" if err is not a
// validation error.
func KindOf(err error) ValidationKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// =============================================================================
// Lookup and connectivity errors
// =============================================================================

// NotFoundError is returned when a key has no stored value.
type NotFoundError struct {
	Resource string
	Key      string
}

// NewNotFoundError creates a not-found error for key.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ConnectivityError is returned when the cache backend cannot be reached.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return "store " + e.Op + ": unavailable"
	}
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// IsUnavailable reports whether err is a connectivity error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// =============================================================================
// Transport mapping
// =============================================================================

// ErrorCode is the machine-readable class of a ServiceError.
type ErrorCode string

const (
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// Stock phrases used when no caller-visible message applies.
var stockPhrases = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusUnprocessableEntity: "Invalid Request",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
	http.StatusServiceUnavailable:  "Service Unavailable",
}

// StockPhrase returns the generic message for an HTTP status.
func StockPhrase(status int) string {
	if msg, ok := stockPhrases[status]; ok {
		return msg
	}
	return "Unknown Error"
}

// ServiceError is an error ready to be rendered by the transport.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// BadRequest creates a 400 error.
func BadRequest(err error) *ServiceError {
	return &ServiceError{Code: CodeBadRequest, Message: StockPhrase(http.StatusBadRequest), HTTPStatus: http.StatusBadRequest, Err: err}
}

// NotFound creates a 404 error.
func NotFound() *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: StockPhrase(http.StatusNotFound), HTTPStatus: http.StatusNotFound}
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded() *ServiceError {
	return &ServiceError{Code: CodeRateLimited, Message: StockPhrase(http.StatusTooManyRequests), HTTPStatus: http.StatusTooManyRequests}
}

// Internal creates a 500 error. The message shown to callers is generic.
func Internal(err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: StockPhrase(http.StatusInternalServerError), HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError maps err onto the transport taxonomy. Validation errors
// keep their message; authentication and unexpected errors get a stock
// phrase so no detail leaks to the caller.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return &ServiceError{Code: CodeInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusUnprocessableEntity, Err: err}
	case errors.Is(err, ErrForbidden):
		return &ServiceError{Code: CodeForbidden, Message: StockPhrase(http.StatusForbidden), HTTPStatus: http.StatusForbidden, Err: err}
	default:
		return Internal(err)
	}
}
