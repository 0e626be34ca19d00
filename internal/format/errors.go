package format

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat covers malformed input: bad magic, malformed length prefixes,
	// unknown structures and unread bytes before a terminator.
	ErrFormat = errors.New("frame format error")

	// ErrTruncated is a premature end of stream. It is also an ErrFormat, but
	// salvage tooling can test for it on its own to keep what was read so far.
	ErrTruncated = fmt.Errorf("%w: unexpected end of stream", ErrFormat)

	// ErrUnknownStruct is returned when no decoder is registered for a
	// (class, generation) pair.
	ErrUnknownStruct = fmt.Errorf("%w: unknown structure", ErrFormat)

	ErrOutOfBounds          = errors.New("value out of bounds")
	ErrIntegrity            = errors.New("checksum mismatch")
	ErrUnsupportedMigration = errors.New("unsupported migration")
	ErrByteOrder            = errors.New("byte order detection failed")

	errUnread = errors.New("unread bytes")
)

// Error attaches diagnostic context to one of the sentinel errors above.
// errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Kind     error
	Offset   int64  // byte offset in the stream, -1 when unknown
	Class    uint16 // structure id, 0 when not applicable
	Struct   string // structure name, if known
	Expected any
	Actual   any
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Struct != "" {
		fmt.Fprintf(&b, " in %s", e.Struct)
	}
	if e.Class != 0 {
		fmt.Fprintf(&b, " (class %d)", e.Class)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&b, ": expected %v, got %v", e.Expected, e.Actual)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Errorf builds an *Error of the given kind with no positional context.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: -1, Err: fmt.Errorf(format, args...)}
}

// Mismatch builds an *Error reporting an expected and actual value.
func Mismatch(kind error, offset int64, expected, actual any) *Error {
	return &Error{Kind: kind, Offset: offset, Expected: expected, Actual: actual}
}

// At returns a copy of err annotated with an offset and structure identity.
// An offset already recorded closer to the failure is kept.
func At(err error, base int64, class uint16, name string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		c := *fe
		if c.Offset < 0 {
			c.Offset = base
		}
		if c.Class == 0 {
			c.Class = class
		}
		if c.Struct == "" {
			c.Struct = name
		}
		return &c
	}
	return &Error{Kind: ErrFormat, Offset: base, Class: class, Struct: name, Err: err}
}
