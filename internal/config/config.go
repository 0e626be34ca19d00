// Package config holds framectl's persistent settings.
//
// Settings are defaults for command flags: a flag given on the command
// line always wins. They are stored as a versioned JSON envelope:
//
//	{"version": 1, "settings": { ... }}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"gwframe/internal/format"
	"gwframe/internal/record"
	"gwframe/internal/stream"
)

// Verifier names accepted by ParseVerifier.
const (
	VerifyStrict = "strict"
	VerifyWarn   = "warn"
	VerifyIgnore = "ignore"
)

// Settings are the user's defaults.
type Settings struct {
	// Generation written by convert when --to is not given. Zero means the
	// newest supported generation.
	Generation uint8 `json:"generation,omitempty"`

	// ByteOrder of written files: "little" (default) or "big".
	ByteOrder string `json:"byteOrder,omitempty"`

	// NoChecksums disables checksum computation on write.
	NoChecksums bool `json:"noChecksums,omitempty"`

	// Verifier decides what checksum mismatches do on read.
	Verifier string `json:"verifier,omitempty"`

	// Workers bounds concurrent frame decoding.
	Workers int `json:"workers,omitempty"`

	// CacheDir overrides where TOC sidecars are kept.
	CacheDir string `json:"cacheDir,omitempty"`

	// Patterns are the default globs for ls and watch.
	Patterns []string `json:"patterns,omitempty"`

	// LogLevel is the default level: debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty"`
}

// Keys lists the settable keys in display order.
var Keys = []string{"generation", "byteOrder", "noChecksums", "verifier", "workers", "cacheDir", "patterns", "logLevel"}

// Validate checks that every field holds an accepted value.
func (s *Settings) Validate() error {
	var errs []error
	if s.Generation != 0 && !record.Generation(s.Generation).Valid() {
		errs = append(errs, fmt.Errorf("generation %d not in [%d, %d]", s.Generation, record.Oldest, record.Newest))
	}
	if _, err := ParseByteOrder(s.ByteOrder); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseVerifier(s.Verifier, nil); err != nil {
		errs = append(errs, err)
	}
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", s.Workers))
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Set assigns value to the setting named key. An empty value resets it.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "generation":
		if value == "" {
			s.Generation = 0
			return nil
		}
		g, err := ParseGeneration(value)
		if err != nil {
			return err
		}
		s.Generation = uint8(g)
	case "byteOrder":
		s.ByteOrder = value
	case "noChecksums":
		if value == "" {
			s.NoChecksums = false
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("noChecksums: %w", err)
		}
		s.NoChecksums = b
	case "verifier":
		s.Verifier = value
	case "workers":
		if value == "" {
			s.Workers = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		s.Workers = n
	case "cacheDir":
		s.CacheDir = value
	case "patterns":
		s.Patterns = nil
		for p := range strings.SplitSeq(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				s.Patterns = append(s.Patterns, p)
			}
		}
	case "logLevel":
		s.LogLevel = value
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	return s.Validate()
}

// Get returns the setting named key formatted for display.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "generation":
		if s.Generation == 0 {
			return "", nil
		}
		return strconv.Itoa(int(s.Generation)), nil
	case "byteOrder":
		return s.ByteOrder, nil
	case "noChecksums":
		return strconv.FormatBool(s.NoChecksums), nil
	case "verifier":
		return s.Verifier, nil
	case "workers":
		return strconv.Itoa(s.Workers), nil
	case "cacheDir":
		return s.CacheDir, nil
	case "patterns":
		return strings.Join(s.Patterns, ","), nil
	case "logLevel":
		return s.LogLevel, nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

// ParseGeneration parses "8" or "v8".
func ParseGeneration(s string) (record.Generation, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "v"), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("generation %q: %w", s, err)
	}
	g := record.Generation(n)
	if !g.Valid() {
		return 0, fmt.Errorf("generation %d not in [%d, %d]", n, record.Oldest, record.Newest)
	}
	return g, nil
}

// ParseByteOrder maps "little", "big" or "" to a byte order.
func ParseByteOrder(s string) (format.Order, error) {
	switch strings.ToLower(s) {
	case "", "little", "le":
		return format.LittleEndian, nil
	case "big", "be":
		return format.BigEndian, nil
	}
	return nil, fmt.Errorf("byte order %q: want little or big", s)
}

// ParseVerifier maps a verifier name to a stream verifier. The empty name
// is strict.
func ParseVerifier(name string, logger *slog.Logger) (stream.Verifier, error) {
	switch strings.ToLower(name) {
	case "", VerifyStrict:
		return stream.Strict(), nil
	case VerifyWarn:
		return stream.Warn(logger), nil
	case VerifyIgnore:
		return stream.Ignore(), nil
	}
	return nil, fmt.Errorf("verifier %q: want one of %s", name,
		strings.Join([]string{VerifyStrict, VerifyWarn, VerifyIgnore}, ", "))
}

// ParseLevel maps a level name to a slog level. The empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// ReadConfig returns the stream configuration for reading.
func (s *Settings) ReadConfig(logger *slog.Logger) (stream.Config, error) {
	v, err := ParseVerifier(s.Verifier, logger)
	if err != nil {
		return stream.Config{}, err
	}
	return stream.Config{Verifier: v, Logger: logger}, nil
}

// WriteConfig returns the stream configuration for writing generation g,
// or the configured generation when g is zero.
func (s *Settings) WriteConfig(g record.Generation, logger *slog.Logger) (stream.Config, error) {
	order, err := ParseByteOrder(s.ByteOrder)
	if err != nil {
		return stream.Config{}, err
	}
	if g == 0 {
		g = record.Generation(s.Generation)
	}
	return stream.Config{
		Gen:         g,
		Order:       order,
		NoChecksums: s.NoChecksums,
		Library:     format.LibraryUnknown,
		Logger:      logger,
	}, nil
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Patterns = slices.Clone(s.Patterns)
	return &c
}
