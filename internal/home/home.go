// Package home manages the framectl home directory layout.
//
// Layout:
//
//	<root>/
//	  config.json       (framectl settings, versioned JSON envelope)
//	  install_id        (persistent installation identity)
//	  toc/              (cached tables of contents for files without one)
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Dir represents a framectl home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/gwframe
//   - macOS:   ~/Library/Application Support/gwframe
//   - Windows: %APPDATA%/gwframe
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "gwframe")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the settings file.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "config.json")
}

// CacheDir returns the directory holding TOC sidecars.
func (d Dir) CacheDir() string {
	return filepath.Join(d.root, "toc")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}

// InstallID reads the persistent installation identity from
// <root>/install_id. If the file doesn't exist, a new UUIDv7 is generated
// and written. It names the producer in history records of converted files.
func (d Dir) InstallID() (uuid.UUID, error) {
	v, err := d.readOrCreate("install_id", func() string {
		return uuid.Must(uuid.NewV7()).String()
	})
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse install_id: %w", err)
	}
	return id, nil
}

// readOrCreate reads a single-line value from <root>/<filename>.
// If the file doesn't exist, generate() provides the default which is persisted.
func (d Dir) readOrCreate(filename string, generate func() string) (string, error) {
	p := filepath.Join(d.root, filename)
	data, err := os.ReadFile(p) //nolint:gosec // G304: path is constructed from trusted home dir + constant filename
	if err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}
	if err := d.EnsureExists(); err != nil {
		return "", err
	}
	v := generate()
	if err := os.WriteFile(p, []byte(v+"\n"), 0o640); err != nil { //nolint:gosec // G306: the id is not secret
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return v, nil
}
