package framefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"

	"gwframe/internal/stream"
)

// seekableFrameSize is the uncompressed size of each independently
// compressed zstd frame. Random reads decompress only the frames they touch.
const seekableFrameSize = 256 << 10

// zstdDec is shared by every reader; it is safe for concurrent use.
var zstdDec *zstd.Decoder

func init() {
	var err error
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("zstd: init decoder: " + err.Error())
	}
}

// CompressedPath returns the path Compress writes for path.
func CompressedPath(path string) string {
	return strings.TrimSuffix(path, Ext) + CompressedExt
}

// Compress writes a seekable zstd copy of the frame file at path next to
// it and returns the new path. The copy is written to a temporary file and
// renamed into place; the original is left alone.
func Compress(path string) (string, error) {
	if strings.HasSuffix(path, CompressedExt) {
		return "", fmt.Errorf("%s is already compressed", path)
	}
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return "", err
	}
	defer func() { _ = enc.Close() }()

	dst := CompressedPath(path)
	err = writeAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		sw, err := seekable.NewWriter(w, enc)
		if err != nil {
			return err
		}
		buf := make([]byte, seekableFrameSize)
		for {
			n, err := io.ReadFull(src, buf)
			if n > 0 {
				if _, werr := sw.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			if err != nil {
				return err
			}
		}
		return sw.Close()
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

// Decompress writes the plain frame file for a compressed one and returns
// its path.
func Decompress(path string) (string, error) {
	if !strings.HasSuffix(path, CompressedExt) {
		return "", fmt.Errorf("%s is not compressed", path)
	}
	src, err := OpenSource(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst := strings.TrimSuffix(path, CompressedExt) + Ext
	err = writeAtomic(dst, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, io.NewSectionReader(src, 0, src.Size()))
		return err
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".framefile-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if err := fill(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Source is random access to the bytes of a plain or compressed frame
// file. It is safe for concurrent ReadAt calls.
type Source struct {
	io.ReaderAt
	size    int64
	closers []io.Closer
}

// Size returns the uncompressed size of the frame file.
func (s *Source) Size() int64 { return s.size }

// Close releases the file.
func (s *Source) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OpenSource opens path, decompressing .gwf.zst files on the fly.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedExt) {
		return &Source{ReaderAt: f, size: info.Size(), closers: []io.Closer{f}}, nil
	}

	r, err := seekable.NewReader(io.NewSectionReader(f, 0, info.Size()), zstdDec)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		_ = r.Close()
		_ = f.Close()
		return nil, err
	}
	return &Source{ReaderAt: r, size: size, closers: []io.Closer{r, f}}, nil
}

// Reader is a stream reader over a plain or compressed frame file.
type Reader struct {
	*stream.Reader
	src *Source
}

// Open opens a frame file for reading.
func Open(path string, cfg stream.Config) (*Reader, error) {
	src, err := OpenSource(path)
	if err != nil {
		return nil, err
	}
	r, err := stream.NewReader(src, src.Size(), cfg)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{Reader: r, src: src}, nil
}

// Source returns the underlying byte source.
func (r *Reader) Source() *Source { return r.src }

// Close closes the file.
func (r *Reader) Close() error { return r.src.Close() }
