// Package framefile deals with frame files on disk: the
// IFO-DESC-GPS-DUR.gwf naming convention, discovery by glob, watching
// directories for new files, seekable zstd compression, and cached tables
// of contents.
package framefile

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Extensions of plain and compressed frame files.
const (
	Ext           = ".gwf"
	CompressedExt = ".gwf.zst"
)

// ErrBadName is returned for file names that do not follow the convention.
var ErrBadName = errors.New("not a frame file name")

// Name is a parsed frame file name: observatory letters, a free-form
// description, the GPS start second and the duration in seconds.
type Name struct {
	Observatory string
	Description string
	Start       uint64
	Duration    uint64
	Compressed  bool
}

// ParseName parses the base name of path.
func ParseName(path string) (Name, error) {
	base := filepath.Base(path)
	var n Name
	switch {
	case strings.HasSuffix(base, CompressedExt):
		n.Compressed = true
		base = strings.TrimSuffix(base, CompressedExt)
	case strings.HasSuffix(base, Ext):
		base = strings.TrimSuffix(base, Ext)
	default:
		return Name{}, fmt.Errorf("%w: %q: extension", ErrBadName, path)
	}

	parts := strings.Split(base, "-")
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" {
		return Name{}, fmt.Errorf("%w: %q: want IFO-DESC-GPS-DUR", ErrBadName, path)
	}
	start, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: GPS start: %w", ErrBadName, path, err)
	}
	dur, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil || dur == 0 {
		return Name{}, fmt.Errorf("%w: %q: duration %q", ErrBadName, path, parts[3])
	}
	n.Observatory, n.Description, n.Start, n.Duration = parts[0], parts[1], start, dur
	return n, nil
}

// String returns the canonical file name.
func (n Name) String() string {
	ext := Ext
	if n.Compressed {
		ext = CompressedExt
	}
	return fmt.Sprintf("%s-%s-%d-%d%s", n.Observatory, n.Description, n.Start, n.Duration, ext)
}

// End returns the first GPS second after the file.
func (n Name) End() uint64 { return n.Start + n.Duration }

// Contains reports whether GPS second gps falls inside the file.
func (n Name) Contains(gps uint64) bool { return gps >= n.Start && gps < n.End() }

// Overlaps reports whether n and o share any second.
func (n Name) Overlaps(o Name) bool { return n.Start < o.End() && o.Start < n.End() }

// Compare orders names by start time, then observatory, then description.
func (n Name) Compare(o Name) int {
	return cmp.Or(
		cmp.Compare(n.Start, o.Start),
		cmp.Compare(n.Observatory, o.Observatory),
		cmp.Compare(n.Description, o.Description),
		cmp.Compare(n.Duration, o.Duration),
	)
}

// File is a frame file found on disk.
type File struct {
	Path string
	Name Name
}

// Sort orders files by name, breaking ties by path.
func Sort(files []File) {
	slices.SortFunc(files, func(a, b File) int {
		return cmp.Or(a.Name.Compare(b.Name), cmp.Compare(a.Path, b.Path))
	})
}

// Gaps returns the GPS intervals [start, end) not covered between the first
// and last file of a sorted, single-stream listing.
func Gaps(files []File) [][2]uint64 {
	var out [][2]uint64
	var end uint64
	for i, f := range files {
		if i > 0 && f.Name.Start > end {
			out = append(out, [2]uint64{end, f.Name.Start})
		}
		end = max(end, f.Name.End())
	}
	return out
}
