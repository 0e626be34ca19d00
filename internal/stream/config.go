// Package stream reads and writes frame files: the file header, structure
// framing, the class dictionary, frames with their cross references, the
// table of contents and the end-of-file trailer. Every byte passes through
// a running checksum filter so frame, structure and file checksums can be
// produced and verified in one pass.
//
// A Reader or Writer is not safe for concurrent use. Use one handle per
// goroutine; several Readers may share an io.ReaderAt.
package stream

import (
	"log/slog"

	"gwframe/internal/checksum"
	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Config configures a Reader or Writer. Fields that only apply to one of
// them are ignored by the other.
type Config struct {
	// Gen is the generation a Writer produces. Defaults to record.Newest.
	Gen record.Generation

	// Order is the byte order a Writer produces. Defaults to little endian.
	Order format.Order

	// NoChecksums makes a Writer store zero checksums with chkType 0.
	NoChecksums bool

	// SkipTOC makes a Writer omit the table of contents.
	SkipTOC bool

	// Library is the frame library id stored in generation 8 headers.
	Library uint8

	// Verifier decides how a Reader treats checksum mismatches.
	// Defaults to Strict.
	Verifier Verifier

	// Logger for structured logging. If nil, logging is disabled.
	// Readers scope it with component="stream-reader", writers with
	// component="stream-writer".
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Gen == 0 {
		c.Gen = record.Newest
	}
	if c.Order == nil {
		c.Order = format.LittleEndian
	}
	if c.Verifier == nil {
		c.Verifier = Strict()
	}
	return c
}

func (c Config) checksum() checksum.Kind {
	if c.NoChecksums {
		return checksum.None
	}
	return checksum.CRC
}
