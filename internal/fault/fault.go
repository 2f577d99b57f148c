// Package fault defines the closed set of error kinds the safety core
// surfaces to callers. Client UIs need to tell "not allowed" apart from
// "already closed", so every kind stays inspectable through errors.As.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a fault.
type Kind int

const (
	// KindNotFound: the entity id does not resolve, or the caller has no
	// visibility into the entity it resolves to.
	KindNotFound Kind = iota + 1
	// KindForbidden: the caller's role or identity fails the operation's
	// precondition.
	KindForbidden
	// KindInvalidState: the operation is not legal in the entity's
	// current status, e.g. appending chat to a resolved incident.
	KindInvalidState
	// KindValidation: malformed input.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a classified fault.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound creates a KindNotFound fault.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates a KindForbidden fault.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// InvalidState creates a KindInvalidState fault.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// AlreadyClosed is the InvalidState fault for operations against a
// terminal incident or session. Worded for staff double-clicking a
// resolve action.
func AlreadyClosed(entity string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("this %s is already closed", entity)}
}

// Validation creates a KindValidation fault.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a fault kind to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or 0 for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a fault to the status code the API layer responds with.
// Unclassified errors map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
