package framefile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"gwframe/internal/logging"
)

// WatchConfig configures Watch.
type WatchConfig struct {
	// Patterns select the files to report, as for Discover.
	Patterns []string

	// Settle is how long a file must go without writes before it is
	// reported. Defaults to two seconds.
	Settle time.Duration

	// Existing reports the files already present when watching starts.
	Existing bool

	// Logger for structured logging. If nil, logging is disabled.
	// Watch scopes this logger with component="watch".
	Logger *slog.Logger
}

// Watch calls fn for every frame file that appears under the patterns'
// directories, once it has stopped changing, until ctx is done.
// Directories created below a pattern containing ** are watched as they
// appear.
func Watch(ctx context.Context, cfg WatchConfig, fn func(File)) error {
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	logger := logging.Default(cfg.Logger).With("component", "watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	recursive := false
	for _, pattern := range cfg.Patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return err
		}
		dir := staticPrefix(abs)
		if strings.Contains(pattern, "**") {
			recursive = true
			err = addTree(watcher, dir)
		} else {
			err = watcher.Add(dir)
		}
		if err != nil {
			return err
		}
		logger.Debug("watching", "dir", dir, "pattern", pattern)
	}

	if cfg.Existing {
		files, err := Discover(cfg.Patterns...)
		if err != nil {
			return err
		}
		for _, f := range files {
			fn(f)
		}
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(max(cfg.Settle/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Create):
				info, err := os.Stat(event.Name)
				if err != nil {
					continue
				}
				if info.IsDir() {
					if recursive {
						if err := addTree(watcher, event.Name); err != nil {
							logger.Warn("failed to watch directory", "dir", event.Name, "error", err)
						}
					}
					continue
				}
				if Match(event.Name, cfg.Patterns...) {
					pending[event.Name] = time.Now()
				}
			case event.Has(fsnotify.Write):
				if _, ok := pending[event.Name]; ok || Match(event.Name, cfg.Patterns...) {
					pending[event.Name] = time.Now()
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fsnotify error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < cfg.Settle {
					continue
				}
				delete(pending, path)
				name, err := ParseName(path)
				if err != nil {
					logger.Debug("ignoring file", "path", path, "error", err)
					continue
				}
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				fn(File{Path: path, Name: name})
			}
		}
	}
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
