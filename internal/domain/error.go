package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// Handlers translate these into HTTP status codes.
const (
	EINVALID         = "invalid"          // 400 - Validation error (bad item, bad date)
	EUNAUTHENTICATED = "unauthenticated"  // 401 - Signature or credential mismatch
	EUNAUTHORIZED    = "unauthorized"     // 401 - Token missing or expired
	EFORBIDDEN       = "forbidden"        // 403 - Authenticated but lacks the claim
	ENOTFOUND        = "not_found"        // 404 - Unknown id or another owner's resource
	ECONFLICT        = "conflict"         // 409 - Duplicate resource
	EINVALIDSTATE    = "invalid_state"    // 409 - Illegal invoice transition
	EEXTERNAL        = "external_service" // 502 - Payment, PDF or storage provider failed
	EUNAVAILABLE     = "unavailable"      // 503 - Provider failure that is worth retrying
	EINTERNAL        = "internal"         // 500 - Internal server error (hide details)
)

const internalMessage = "An internal error occurred. Please try again later."

// Error represents an application error with a code and message.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "invoice.send").
	// Logged, never shown to users.
	Op string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code and message so that a sentinel
// re-created with a different Op still compares equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// ErrorCode extracts the error code from an error.
// ValidationError reports EINVALID; any other non-domain error reports EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from an error.
// Internal errors get a generic message so details do not leak.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Validation failed"
	}

	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}

	return internalMessage
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Op
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "invoice.create", "unsupported currency: %s", c)
func Errorf(code, op, format string, args ...any) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps err with a domain code and operation. Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationError collects field-level failures, e.g. "items[2].quantity".
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			if e.Op != "" {
				return fmt.Sprintf("%s: %s: %s", e.Op, field, msg)
			}
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: validation failed for %d fields", e.Op, len(e.Fields))
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{
		Op:     op,
		Fields: map[string]string{field: message},
	}
}

// Add records a field failure on the receiver.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// OrNil returns the receiver as an error when it holds failures, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields extracts field errors from a ValidationError.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// =============================================================================
// Constructors
// =============================================================================

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("invoice.get", "invoice", id.String())
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// InvalidState reports an illegal state-machine transition.
func InvalidState(op, message string) error {
	return &Error{Code: EINVALIDSTATE, Op: op, Message: message}
}

// Unauthenticated reports a failed signature or credential check.
func Unauthenticated(op, message string) error {
	return &Error{Code: EUNAUTHENTICATED, Op: op, Message: message}
}

// Unauthorized reports a missing or unusable access token.
func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

// Forbidden creates a forbidden error.
func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

// Invalid creates a single-issue validation error.
func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Conflict creates a conflict error.
func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// External wraps a payment, PDF or storage provider failure.
// Example: domain.External(err, "invoice.issue_payment_link", "payment provider unavailable")
func External(err error, op, message string) error {
	return &Error{Code: EEXTERNAL, Op: op, Message: message, Err: err}
}

// Unavailable wraps a transient provider failure the caller may retry.
func Unavailable(err error, op, message string) error {
	return &Error{Code: EUNAVAILABLE, Op: op, Message: message, Err: err}
}

// Internal wraps an unexpected failure. Users see a generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
