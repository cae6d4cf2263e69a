// Package errs defines the closed error taxonomy shared by the kernel
// adapter, merger, plugin supervisor, DHCP manager, apply engine, IPC
// layer and daemon front-end. Every error that crosses a component
// boundary is (or wraps into) an *Error carrying one of the Kind values
// below, so the IPC layer can serialize it to the wire "error" envelope
// kind verbatim.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories from the IPC wire protocol.
type Kind int

const (
	KindUnknown Kind = iota
	KindBug
	KindIpcClosed
	KindIpcFailure
	KindIpcMessageTooLarge
	KindInvalidLogLevel
	KindInvalidUuid
	KindInvalidSchemaVersion
	KindInvalidArgument
	KindTimeout
	KindNoSupport
	KindPluginFailure
	KindDaemonFailure
	KindVerificationError
	KindPermissionDeny
)

func (k Kind) String() string {
	switch k {
	case KindBug:
		return "Bug"
	case KindIpcClosed:
		return "IpcClosed"
	case KindIpcFailure:
		return "IpcFailure"
	case KindIpcMessageTooLarge:
		return "IpcMessageTooLarge"
	case KindInvalidLogLevel:
		return "InvalidLogLevel"
	case KindInvalidUuid:
		return "InvalidUuid"
	case KindInvalidSchemaVersion:
		return "InvalidSchemaVersion"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTimeout:
		return "Timeout"
	case KindNoSupport:
		return "NoSupport"
	case KindPluginFailure:
		return "PluginFailure"
	case KindDaemonFailure:
		return "DaemonFailure"
	case KindVerificationError:
		return "VerificationError"
	case KindPermissionDeny:
		return "PermissionDeny"
	default:
		return "Unknown"
	}
}

// Error is a structured, wire-serializable error.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a
// formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to an error, wrapping it as KindBug first if it
// isn't already an *Error.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindBug, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if it isn't an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects all attributes in err's chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error
	cur := err
	for cur != nil {
		if errors.As(cur, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			cur = e.Underlying
		} else {
			break
		}
	}
	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling Unwrap on err, if implemented.
func Unwrap(err error) error { return errors.Unwrap(err) }
