// Package errs provides the typed error taxonomy shared across the
// tiling pipeline and the viewer-side chunk manager.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a pipeline failure. Every Kind is
// fatal to the operation that produced it; none are retried
// automatically.
type Kind int

const (
	// FileNotFound means the source path does not exist.
	FileNotFound Kind = iota
	// UnsupportedFormat means the source extension is not in the supported set.
	UnsupportedFormat
	// DecodeFailed means the pixel codec rejected the source.
	DecodeFailed
	// IoError means a read, write, or rename failed.
	IoError
	// NotPreprocessed means get_chunk was called against an incomplete cache entry.
	NotPreprocessed
	// FramingError means a blob's header and body sizes are inconsistent.
	FramingError
	// GpuUploadFailed means texture creation or upload returned a failure.
	GpuUploadFailed
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case DecodeFailed:
		return "DecodeFailed"
	case IoError:
		return "IoError"
	case NotPreprocessed:
		return "NotPreprocessed"
	case FramingError:
		return "FramingError"
	case GpuUploadFailed:
		return "GpuUploadFailed"
	default:
		return "Unknown"
	}
}

// Error is the opaque, machine-readable error surfaced across the
// preprocessor / cache / server / manager boundary.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that wraps an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
