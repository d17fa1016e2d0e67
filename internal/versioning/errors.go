package versioning

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes versioning failure semantics across entities.
type ErrorCode string

const (
	CodeValidation     ErrorCode = "validation"
	CodeNotFound       ErrorCode = "not_found"
	CodeConflict       ErrorCode = "conflict"
	CodeTransient      ErrorCode = "transient"
	CodeRetryExhausted ErrorCode = "retry_exhausted"
	CodeInternal       ErrorCode = "internal"
)

// Error is the canonical versioning error wrapper. Collisions are not
// represented here; they use the Collision type and never cross the
// coordinator boundary.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a versioning error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with versioning error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var vErr *Error
	if !errors.As(err, &vErr) {
		return false
	}
	return vErr.Code == code
}

// CodeOf extracts the versioning error code when available.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var rex *RetryExhaustedError
	if errors.As(err, &rex) {
		return CodeRetryExhausted
	}
	var vErr *Error
	if !errors.As(err, &vErr) {
		return ""
	}
	return vErr.Code
}

// CollisionReason is the normalized cause attached to a classified write
// conflict. duplicate_version and duplicate_natural_key are the retryable
// reasons; anything the classifier cannot attribute stays unknown and fatal.
type CollisionReason string

const (
	ReasonDuplicateVersion    CollisionReason = "duplicate_version"
	ReasonDuplicateNaturalKey CollisionReason = "duplicate_natural_key"
	ReasonUnknown             CollisionReason = "unknown"
)

// Collision marks a retryable write conflict on a (scope, version) slot.
// It is internal coordination state: callers of the manager never see it.
type Collision struct {
	Reason  CollisionReason
	Scope   ScopeKey
	Version int
	Cause   error
}

func (c *Collision) Error() string {
	if c == nil {
		return "<nil>"
	}
	if c.Version > 0 {
		return fmt.Sprintf("version collision on %s v%d (%s)", c.Scope.String(), c.Version, c.Reason)
	}
	return fmt.Sprintf("version collision on %s (%s)", c.Scope.String(), c.Reason)
}

func (c *Collision) Unwrap() error { return c.Cause }

// AsCollision unwraps err looking for a classified collision.
func AsCollision(err error) (*Collision, bool) {
	var col *Collision
	if errors.As(err, &col) {
		return col, true
	}
	return nil, false
}

// RetryExhaustedError reports that collisions persisted past the attempt
// budget. Last carries the final collision for diagnostics.
type RetryExhaustedError struct {
	Op       string
	Scope    ScopeKey
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: retry budget exhausted after %d attempts on %s", e.Op, e.Attempts, e.Scope.String())
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// IsRetryExhausted checks whether err reports an exhausted retry budget.
func IsRetryExhausted(err error) bool {
	var rex *RetryExhaustedError
	return errors.As(err, &rex)
}
