package framefile

import (
	"errors"
	"log/slog"
	"os"

	"gwframe/internal/logging"
	"gwframe/internal/toc"
)

// LoadTOC returns the table of contents of the file at path opened as r
// and installs it on r. A TOC stored in the file wins. Otherwise a sidecar
// under cacheDir is used when it still matches the file, and failing that
// the file is scanned and the result cached. An empty cacheDir disables
// the sidecar.
func LoadTOC(r *Reader, path, cacheDir string, logger *slog.Logger) (*toc.TOC, error) {
	logger = logging.Default(logger).With("component", "toc-cache", "path", path)

	if r.Generation().HasEndOfFile() {
		eof, err := r.EndOfFile()
		if err != nil {
			return nil, err
		}
		if eof.HasTOC() {
			return r.TOC()
		}
	}
	if cacheDir == "" {
		return r.TOC()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	t, err := toc.LoadSidecar(cacheDir, path, info)
	switch {
	case err == nil:
		logger.Debug("using cached toc", "frames", t.NFrames())
		r.SetTOC(t)
		return t, nil
	case !errors.Is(err, toc.ErrNoSidecar):
		logger.Warn("ignoring unreadable toc sidecar", "error", err)
	}

	t, err = r.TOC()
	if err != nil {
		return nil, err
	}
	if err := toc.SaveSidecar(cacheDir, path, info, t); err != nil {
		logger.Warn("failed to cache toc", "error", err)
	}
	return t, nil
}
