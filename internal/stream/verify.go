package stream

import (
	"fmt"
	"log/slog"

	"gwframe/internal/checksum"
	"gwframe/internal/format"
	"gwframe/internal/logging"
	"gwframe/internal/record"
)

// Mismatch describes a checksum that did not match the stored value.
type Mismatch struct {
	Scope    checksum.Scope
	Offset   int64 // start of the structure holding the stored checksum
	Class    record.ClassID
	Frame    int // zero-based frame index, -1 outside a frame
	Expected uint32
	Actual   uint32
}

// Err returns the mismatch as an ErrIntegrity error.
func (m Mismatch) Err() error {
	e := &format.Error{
		Kind:     format.ErrIntegrity,
		Offset:   m.Offset,
		Class:    uint16(m.Class),
		Struct:   m.Class.String(),
		Expected: m.Expected,
		Actual:   m.Actual,
	}
	if m.Frame >= 0 {
		e.Err = fmt.Errorf("%s checksum of frame %d", m.Scope, m.Frame)
	} else {
		e.Err = fmt.Errorf("%s checksum", m.Scope)
	}
	return e
}

// Verifier decides what a checksum mismatch means. A non-nil return is
// handed to the caller of the read that found it.
type Verifier interface {
	Mismatch(m Mismatch) error
}

type strict struct{}

func (strict) Mismatch(m Mismatch) error { return m.Err() }

// Strict reports every mismatch as an ErrIntegrity error.
func Strict() Verifier { return strict{} }

type warn struct{ logger *slog.Logger }

func (w warn) Mismatch(m Mismatch) error {
	w.logger.Warn("checksum mismatch",
		"scope", m.Scope.String(),
		"offset", m.Offset,
		"struct", m.Class.String(),
		"frame", m.Frame,
		"expected", m.Expected,
		"actual", m.Actual)
	return nil
}

// Warn logs mismatches and keeps reading.
func Warn(logger *slog.Logger) Verifier {
	return warn{logger: logging.Default(logger).With("component", "verifier")}
}

type ignore struct{}

func (ignore) Mismatch(Mismatch) error { return nil }

// Ignore skips checksum verification outcomes entirely.
func Ignore() Verifier { return ignore{} }
