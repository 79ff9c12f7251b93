// Package zdstat defines the tagged-union error kinds the generator
// surfaces to callers, mirroring the fmt.Errorf-wrapping idiom used
// throughout the codebase while still letting callers switch on a
// stable Kind with errors.As.
package zdstat

import "fmt"

// Kind classifies a generator-level failure.
type Kind int

const (
	// Corrupt means the archive could not be parsed: bad EOCD signature,
	// inconsistent sizes, or a truncated header.
	Corrupt Kind = iota
	// Unsupported means the archive uses a feature outside the core's
	// scope: ZIP64, encrypted central directory, multi-disk.
	Unsupported
	// IO means an underlying read or write failed; may be transient.
	IO
	// Interrupted means cancellation was observed at a suspension point.
	Interrupted
	// InvariantViolation means an internal ordering/overlap invariant was
	// broken; this is a programmer error and always aborts.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Corrupt:
		return "corrupt_archive"
	case Unsupported:
		return "unsupported_archive"
	case IO:
		return "io"
	case Interrupted:
		return "interrupted"
	case InvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Error is the generator's error type. Where names the component that
// raised it ("eocd", "central_directory", "planner", ...); Cause, when
// present, is the underlying error this one wraps.
type Error struct {
	Kind  Kind
	Where string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Where, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Where)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, &zdstat.Error{Kind: zdstat.Interrupted}) style
// matching against a bare Kind wrapped as an *Error with no Where/Cause.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an *Error of the given kind wrapping cause with context
// about where it happened.
func New(kind Kind, where string, cause error) *Error {
	return &Error{Kind: kind, Where: where, Cause: cause}
}

// Corruptf builds a Corrupt error with a formatted Where message.
func Corruptf(format string, args ...any) *Error {
	return &Error{Kind: Corrupt, Where: fmt.Sprintf(format, args...)}
}

// Unsupportedf builds an Unsupported error with a formatted Where message.
func Unsupportedf(format string, args ...any) *Error {
	return &Error{Kind: Unsupported, Where: fmt.Sprintf(format, args...)}
}

// Wrapf wraps cause as an IO error with a formatted Where message.
func Wrapf(cause error, format string, args ...any) *Error {
	return &Error{Kind: IO, Where: fmt.Sprintf(format, args...), Cause: cause}
}

// Interruptedf builds an Interrupted error for the given suspension point.
func Interruptedf(where string) *Error {
	return &Error{Kind: Interrupted, Where: where}
}

// Invariantf builds an InvariantViolation error describing the broken
// invariant.
func Invariantf(format string, args ...any) *Error {
	return &Error{Kind: InvariantViolation, Where: fmt.Sprintf(format, args...)}
}
