// Package dsserr defines the error taxonomy shared by every DSS component
// (spec §6.4, §7). Every fallible DSS operation returns a result carrying
// one of these kinds plus a context message rather than raising an
// exception; it is the one piece of vocabulary every other package in this
// module imports.
package dsserr

import (
	"errors"
	"fmt"
)

// ErrKind enumerates the error classes a DSS caller may observe.
type ErrKind int

const (
	// Ok indicates the operation succeeded; *Error values never carry this
	// kind, it exists only so a zero ErrKind compares as "no error".
	Ok ErrKind = iota
	InvalidData
	Conflict
	NoSpace
	OutOfMemory
	TooManyUsers
	IoError
	NoLock
	AccessDenied
	CommunicationError
	NotFound
	Ambiguous
	NotSupported
	NotConnected
	SchemaMismatch
	InvalidFilter
	InvalidField
	AlreadyInitialized
)

func (k ErrKind) String() string {
	switch k {
	case Ok:
		return "ok"
	case InvalidData:
		return "invalid_data"
	case Conflict:
		return "conflict"
	case NoSpace:
		return "no_space"
	case OutOfMemory:
		return "out_of_memory"
	case TooManyUsers:
		return "too_many_users"
	case IoError:
		return "io_error"
	case NoLock:
		return "no_lock"
	case AccessDenied:
		return "access_denied"
	case CommunicationError:
		return "communication_error"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	case NotSupported:
		return "not_supported"
	case NotConnected:
		return "not_connected"
	case SchemaMismatch:
		return "schema_mismatch"
	case InvalidFilter:
		return "invalid_filter"
	case InvalidField:
		return "invalid_field"
	case AlreadyInitialized:
		return "already_initialized"
	default:
		return fmt.Sprintf("errkind(%d)", int(k))
	}
}

// Error is the error type returned by every fallible DSS operation.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dss: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("dss: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &dsserr.Error{Kind: dsserr.Conflict}) style
// comparisons; it matches any *Error sharing the same Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Kindf builds a new *Error of the given kind with a formatted message.
func Kindf(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a new *Error of the given kind, preserving cause for Unwrap.
func Wrap(kind ErrKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the ErrKind carried by err, or CommunicationError if err
// is not a *Error produced by this module (e.g. a raw network failure).
func KindOf(err error) ErrKind {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return CommunicationError
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind ErrKind) bool {
	return KindOf(err) == kind
}
