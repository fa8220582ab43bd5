// Package errors defines the structured error taxonomy used at the boundary
// between host code and the guest runtime.
package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindIndexOutOfBounds  Kind = "index_out_of_bounds"
	KindNoSuchMethod      Kind = "no_such_method"
	KindNoSuchField       Kind = "no_such_field"
	KindAmbiguousOverload Kind = "ambiguous_overload"
	KindGuestFault        Kind = "guest_fault"
	KindDanglingReference Kind = "dangling_reference"
	KindClassNotFound     Kind = "class_not_found"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrIndexOutOfBounds  = &Error{Kind: KindIndexOutOfBounds}
	ErrNoSuchMethod      = &Error{Kind: KindNoSuchMethod}
	ErrNoSuchField       = &Error{Kind: KindNoSuchField}
	ErrAmbiguousOverload = &Error{Kind: KindAmbiguousOverload}
	ErrGuestFault        = &Error{Kind: KindGuestFault}
	ErrDanglingReference = &Error{Kind: KindDanglingReference}
	ErrClassNotFound     = &Error{Kind: KindClassNotFound}
)

// Error is the structured error returned by bridge operations
type Error struct {
	// Value is the offending host value, or for guest faults the
	// host proxy of the thrown exception object.
	Value any
	Cause error
	Kind  Kind
	// Op names the bridge operation, e.g. "invoke", "array.set".
	Op     string
	Detail string

	GuestClass   string
	GuestMessage string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteByte('[')
		b.WriteString(e.Op)
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.GuestClass != "" {
		b.WriteString(": ")
		b.WriteString(e.GuestClass)
		if e.GuestMessage != "" {
			b.WriteString(": ")
			b.WriteString(e.GuestMessage)
		}
	}

	if e.Detail != "" {
		if e.GuestClass != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op string, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Op:   op,
			Kind: kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Guest records the guest exception class and message
func (b *Builder) Guest(class, message string) *Builder {
	b.err.GuestClass = class
	b.err.GuestMessage = message
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(op string, value any, format string, args ...any) *Error {
	return &Error{
		Op:     op,
		Kind:   KindTypeMismatch,
		Value:  value,
		Detail: fmt.Sprintf(format, args...),
	}
}

// OutOfBounds creates an index out of bounds error
func OutOfBounds(op string, index, length int) *Error {
	return &Error{
		Op:     op,
		Kind:   KindIndexOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NoSuchMethod creates a reflection miss for a method
func NoSuchMethod(className, name string, argc int) *Error {
	return &Error{
		Op:     "invoke",
		Kind:   KindNoSuchMethod,
		Detail: fmt.Sprintf("no method %s.%s applicable to %d argument(s)", className, name, argc),
	}
}

// NoSuchField creates a reflection miss for a field
func NoSuchField(className, name string) *Error {
	return &Error{
		Op:     "field",
		Kind:   KindNoSuchField,
		Detail: fmt.Sprintf("no field %s.%s", className, name),
	}
}

// AmbiguousOverload reports equally specific overload candidates
func AmbiguousOverload(className, name string, candidates []string) *Error {
	return &Error{
		Op:     "invoke",
		Kind:   KindAmbiguousOverload,
		Detail: fmt.Sprintf("%s.%s is ambiguous between %s", className, name, strings.Join(candidates, ", ")),
	}
}

// GuestFault wraps an exception raised inside the guest runtime
func GuestFault(op, class, message string, exception any, cause error) *Error {
	return &Error{
		Op:           op,
		Kind:         KindGuestFault,
		GuestClass:   class,
		GuestMessage: message,
		Value:        exception,
		Cause:        cause,
	}
}

// DanglingReference reports use of a reference with no pin entry
func DanglingReference(op string, ref any) *Error {
	return &Error{
		Op:     op,
		Kind:   KindDanglingReference,
		Detail: fmt.Sprintf("reference %v has no pin entry", ref),
		Value:  ref,
	}
}

// ClassNotFound reports a failed class lookup
func ClassNotFound(name string, cause error) *Error {
	return &Error{
		Op:     "find-class",
		Kind:   KindClassNotFound,
		Detail: fmt.Sprintf("class %q not found", name),
		Cause:  cause,
	}
}
