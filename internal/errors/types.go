// Package errors implements the sum-typed error model shared by every
// component: a closed Kind enum, a CoreError carrying kind + message +
// optional cause, and predicate helpers callers use instead of string
// matching. Transport to the UI (§6 of the spec) flattens a CoreError to
// "kind: message", preserving the kind as a prefix.
package errors

import "fmt"

// Kind is the closed set of error categories the core produces.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindPolicyDenied        Kind = "PolicyDenied"
	KindInvalidInput        Kind = "InvalidInput"
	KindCircularDependency  Kind = "CircularDependency"
	KindConflict            Kind = "Conflict"
	KindTimeout             Kind = "Timeout"
	KindIOError             Kind = "IOError"
	KindRuntimeTrap         Kind = "RuntimeTrap"
	KindProtocolError       Kind = "ProtocolError"
	KindInternal            Kind = "Internal"
)

// CoreError is the concrete error type every component returns.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
	// Detail carries structured context for InvalidInput errors (e.g.
	// which manifest field failed validation).
	Detail map[string]any
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

func newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *CoreError { return newf(KindNotFound, format, args...) }

func PolicyDenied(format string, args ...any) *CoreError {
	return newf(KindPolicyDenied, format, args...)
}

func InvalidInput(format string, args ...any) *CoreError {
	return newf(KindInvalidInput, format, args...)
}

// InvalidInputDetail attaches structured detail to an InvalidInput error.
func InvalidInputDetail(detail map[string]any, format string, args ...any) *CoreError {
	err := newf(KindInvalidInput, format, args...)
	err.Detail = detail
	return err
}

func CircularDependency(format string, args ...any) *CoreError {
	return newf(KindCircularDependency, format, args...)
}

func Conflict(format string, args ...any) *CoreError { return newf(KindConflict, format, args...) }

func Timeout(format string, args ...any) *CoreError { return newf(KindTimeout, format, args...) }

func IOError(cause error, format string, args ...any) *CoreError {
	err := newf(KindIOError, format, args...)
	err.Cause = cause
	return err
}

func RuntimeTrap(cause error, format string, args ...any) *CoreError {
	err := newf(KindRuntimeTrap, format, args...)
	err.Cause = cause
	return err
}

func ProtocolError(format string, args ...any) *CoreError {
	return newf(KindProtocolError, format, args...)
}

func Internal(cause error, format string, args ...any) *CoreError {
	err := newf(KindInternal, format, args...)
	err.Cause = cause
	return err
}

// kindOf extracts the Kind of err if it is (or wraps) a *CoreError.
func kindOf(err error) (Kind, bool) {
	var ce *CoreError
	if asCoreError(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// asCoreError is a small local errors.As to avoid importing the stdlib
// "errors" package under a name that collides with this package's name.
func asCoreError(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func Is(err error, kind Kind) bool {
	k, ok := kindOf(err)
	return ok && k == kind
}

func IsNotFound(err error) bool          { return Is(err, KindNotFound) }
func IsPolicyDenied(err error) bool      { return Is(err, KindPolicyDenied) }
func IsInvalidInput(err error) bool      { return Is(err, KindInvalidInput) }
func IsCircularDependency(err error) bool { return Is(err, KindCircularDependency) }
func IsConflict(err error) bool          { return Is(err, KindConflict) }
func IsTimeout(err error) bool           { return Is(err, KindTimeout) }
func IsIOError(err error) bool           { return Is(err, KindIOError) }
func IsRuntimeTrap(err error) bool       { return Is(err, KindRuntimeTrap) }
func IsProtocolError(err error) bool     { return Is(err, KindProtocolError) }
func IsInternal(err error) bool          { return Is(err, KindInternal) }
