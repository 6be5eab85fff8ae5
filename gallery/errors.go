package gallery

import (
	"errors"
	"fmt"
)

// Kind classifies per-file failures for reporting.
type Kind string

const (
	KindConfig    Kind = "config"
	KindLogo      Kind = "logo"
	KindDecode    Kind = "decode"
	KindEncode    Kind = "encode"
	KindWrite     Kind = "write"
	KindReference Kind = "reference"
	KindManifest  Kind = "manifest"
)

// Error is a failure tied to one file and the step that produced it.
type Error struct {
	Kind  Kind
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %v", e.Kind, e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches kind, op and path to err. Errors that already carry a kind
// are returned unchanged.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Op: op, Path: path, Cause: err}
}

// IsKind reports whether the first kinded error in the chain has kind.
func IsKind(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" for plain errors.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}
