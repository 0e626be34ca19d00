package toc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

const sidecarVersion = 1

// ErrNoSidecar is returned when no usable sidecar exists for a file.
var ErrNoSidecar = errors.New("no toc sidecar")

// sidecar is the on-disk cache entry for a scanned TOC. The TOC itself is
// stored as an FrTOC body in big-endian order.
type sidecar struct {
	Version int    `msgpack:"version"`
	Path    string `msgpack:"path"`
	Size    int64  `msgpack:"size"`
	ModTime int64  `msgpack:"mod_time"`
	Gen     uint8  `msgpack:"gen"`
	Body    []byte `msgpack:"body"`
}

// SidecarPath returns where the sidecar of file is kept under dir.
func SidecarPath(dir, file string) string {
	return filepath.Join(dir, fmt.Sprintf("%016x.toc", xxhash.Sum64String(absPath(file))))
}

func absPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}

// SaveSidecar caches t for file, keyed by the file's size and modification
// time.
func SaveSidecar(dir, file string, info fs.FileInfo, t *TOC) error {
	e := format.NewEncoder(format.BigEndian, make([]byte, 0, t.Bytes()))
	t.encode(e)
	if err := e.Err(); err != nil {
		return fmt.Errorf("encode toc: %w", err)
	}
	data, err := msgpack.Marshal(&sidecar{
		Version: sidecarVersion,
		Path:    absPath(file),
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Gen:     uint8(t.Gen),
		Body:    e.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("marshal toc sidecar: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sidecar directory: %w", err)
	}
	path := SidecarPath(dir, file)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// LoadSidecar returns the cached TOC of file. ErrNoSidecar means there is
// none, or the file changed since it was written.
func LoadSidecar(dir, file string, info fs.FileInfo) (*TOC, error) {
	data, err := os.ReadFile(SidecarPath(dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSidecar
	}
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var sc sidecar
	if err := msgpack.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	if sc.Version != sidecarVersion || sc.Path != absPath(file) || sc.Size != info.Size() || sc.ModTime != info.ModTime().UnixNano() {
		return nil, ErrNoSidecar
	}
	g := record.Generation(sc.Gen)
	if !g.Valid() {
		return nil, fmt.Errorf("sidecar generation %d: %w", sc.Gen, format.ErrFormat)
	}
	d := format.NewDecoder(format.BigEndian, sc.Body, 0)
	r := decode(d, record.Context{Gen: g})
	if err := d.Finish(); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	return r.(*TOC), nil
}
