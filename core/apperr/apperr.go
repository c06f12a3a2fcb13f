// Package apperr defines the error taxonomy shared by the loader, the mounter
// and the request handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of error. Its string form is the stable name
// reported to clients in the error envelope.
type Kind string

const (
	KindGeneric      Kind = "Error"
	KindDirectory    Kind = "DirectoryError"
	KindConfigLoad   Kind = "ConfigLoadError"
	KindValidation   Kind = "ValidationError"
	KindInvalidQuery Kind = "InvalidQueryError"
	KindDataLayer    Kind = "DataLayerError"
	KindInvalidApp   Kind = "InvalidAppError"
)

// Error is the error type surfaced by every public operation.
type Error struct {
	Kind    Kind
	Message string

	// Meta carries optional structured metadata (e.g. the offending path).
	Meta map[string]any

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Name returns the stable name of the error kind.
func (e *Error) Name() string {
	if e.Kind == "" {
		return string(KindGeneric)
	}
	return string(e.Kind)
}

// With returns a copy of e with key set in its metadata.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Meta = make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	cp.Meta[key] = value
	return &cp
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.New(apperr.KindDirectory, "")) matches by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindGeneric if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// Directory wraps a filesystem failure for path.
func Directory(message, path string, cause error) *Error {
	return (&Error{Kind: KindDirectory, Message: message + path, Cause: cause}).With("path", path)
}
