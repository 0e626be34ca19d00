package framefile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gwframe/internal/record"
	"gwframe/internal/stream"
	"gwframe/internal/toc"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		path    string
		want    Name
		wantErr bool
	}{
		{path: "/data/H-H1_R-1000000000-64.gwf", want: Name{Observatory: "H", Description: "H1_R", Start: 1000000000, Duration: 64}},
		{path: "HL-TEST-0-1.gwf.zst", want: Name{Observatory: "HL", Description: "TEST", Start: 0, Duration: 1, Compressed: true}},
		{path: "H-H1_R-1000000000-64.txt", wantErr: true},
		{path: "H-H1_R-1000000000.gwf", wantErr: true},
		{path: "H-H1_R-abc-64.gwf", wantErr: true},
		{path: "H-H1_R-1000-0.gwf", wantErr: true},
		{path: "-H1_R-1000-16.gwf", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got, err := ParseName(tc.path)
			if tc.wantErr {
				if !errors.Is(err, ErrBadName) {
					t.Fatalf("expected ErrBadName, got %v (%+v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseName: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, got)
			}
			if got.String() != filepath.Base(tc.path) {
				t.Errorf("String: expected %q, got %q", filepath.Base(tc.path), got.String())
			}
		})
	}
}

func TestNameIntervals(t *testing.T) {
	n := Name{Observatory: "H", Description: "R", Start: 100, Duration: 16}
	if n.End() != 116 {
		t.Errorf("End: expected 116, got %d", n.End())
	}
	if !n.Contains(100) || !n.Contains(115) || n.Contains(116) || n.Contains(99) {
		t.Error("Contains: wrong half-open interval")
	}
	if !n.Overlaps(Name{Start: 115, Duration: 4}) {
		t.Error("expected overlap at 115")
	}
	if n.Overlaps(Name{Start: 116, Duration: 4}) {
		t.Error("adjacent files must not overlap")
	}
}

func TestSortAndGaps(t *testing.T) {
	mk := func(start, dur uint64) File {
		n := Name{Observatory: "H", Description: "R", Start: start, Duration: dur}
		return File{Path: "/d/" + n.String(), Name: n}
	}
	files := []File{mk(132, 16), mk(100, 16), mk(116, 16), mk(180, 20)}
	Sort(files)
	for i, want := range []uint64{100, 116, 132, 180} {
		if files[i].Name.Start != want {
			t.Fatalf("Sort: position %d: expected start %d, got %d", i, want, files[i].Name.Start)
		}
	}
	gaps := Gaps(files)
	if len(gaps) != 1 || gaps[0] != [2]uint64{148, 180} {
		t.Errorf("Gaps: expected [[148 180]], got %v", gaps)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a", "H-R-200-16.gwf"))
	touch(t, filepath.Join(dir, "a", "b", "H-R-100-16.gwf"))
	touch(t, filepath.Join(dir, "a", "b", "L-R-100-16.gwf.zst"))
	touch(t, filepath.Join(dir, "a", "notes.gwf"))
	touch(t, filepath.Join(dir, "a", "H-R-300-16.txt"))

	files, err := Discover(filepath.Join(dir, "**", "*.gwf"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}
	if files[0].Name.Start != 100 || files[1].Name.Start != 200 {
		t.Errorf("expected files sorted by start, got %+v", files)
	}

	files, err = Discover(filepath.Join(dir, "**", "*.gwf"), filepath.Join(dir, "a", "b", "*"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files without duplicates, got %d: %+v", len(files), files)
	}
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "**", "*.gwf")
	if !Match(filepath.Join(dir, "x", "y", "H-R-1-1.gwf"), pattern) {
		t.Error("expected nested file to match")
	}
	if Match(filepath.Join(dir, "x", "H-R-1-1.txt"), pattern) {
		t.Error("unexpected match")
	}
	if got := staticPrefix(pattern); got != dir {
		t.Errorf("staticPrefix: expected %q, got %q", dir, got)
	}
}

// writeFile writes n frames to path. Every frame carries a static data
// vector of size bytes.
func writeFile(t *testing.T, path string, cfg stream.Config, n, size int) {
	t.Helper()
	w, err := stream.Create(path, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	g := w.Generation()
	for i := range n {
		h := &record.FrameH{Gen: g, Name: "TEST", Run: 1, Frame: uint32(i),
			GTime: record.GPSTime{Sec: 1000 + uint32(i)}, Dt: 1}
		data := bytes.Repeat([]byte{byte('a' + i%26)}, size)
		v, err := record.NewVect(g, "blob", record.VectC, data, record.Dim{DX: 1}, record.CompressRaw)
		if err != nil {
			t.Fatalf("NewVect: %v", err)
		}
		f := &stream.Frame{
			Header:  h,
			History: []*record.History{{Gen: g, Name: "test", Comment: "written"}},
			Stats: []stream.Stat{{
				StatData: &record.StatData{Gen: g, Name: "blob", Representation: "raw", TimeEnd: 1},
				Data:     v,
			}},
		}
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "H-TEST-1000-4.gwf")
	writeFile(t, path, stream.Config{Gen: record.Gen8}, 4, 200<<10)

	zpath, err := Compress(path)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if zpath != filepath.Join(dir, "H-TEST-1000-4.gwf.zst") {
		t.Fatalf("unexpected compressed path %q", zpath)
	}
	plain, _ := os.Stat(path)
	packed, _ := os.Stat(zpath)
	if packed.Size() >= plain.Size() {
		t.Errorf("expected compression, got %d >= %d bytes", packed.Size(), plain.Size())
	}

	r, err := Open(zpath, stream.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()
	if r.Size() != plain.Size() {
		t.Fatalf("Size: expected %d, got %d", plain.Size(), r.Size())
	}

	// Random access across seekable frame boundaries, then sequential.
	f, err := r.FrameAt(2)
	if err != nil {
		t.Fatalf("FrameAt(2): %v", err)
	}
	if f.Header.Frame != 2 || f.Stats[0].Data.Data[0] != 'c' {
		t.Errorf("FrameAt(2): got frame %d starting %q", f.Header.Frame, f.Stats[0].Data.Data[0])
	}

	seq, err := Open(zpath, stream.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = seq.Close() }()
	for i := range 4 {
		f, err := seq.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(f.Stats[0].Data.Data) != 200<<10 {
			t.Fatalf("frame %d: expected %d bytes, got %d", i, 200<<10, len(f.Stats[0].Data.Data))
		}
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	back, err := Decompress(zpath)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if back != path {
		t.Fatalf("Decompress: expected %q, got %q", path, back)
	}
	restored, _ := os.Stat(back)
	if restored.Size() != plain.Size() {
		t.Errorf("expected %d bytes restored, got %d", plain.Size(), restored.Size())
	}
}

func TestCompressRejectsCompressed(t *testing.T) {
	if _, err := Compress("H-R-1-1.gwf.zst"); err == nil {
		t.Error("expected error")
	}
	if _, err := Decompress("H-R-1-1.gwf"); err == nil {
		t.Error("expected error")
	}
}

func TestLoadTOCSidecar(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	path := filepath.Join(dir, "H-TEST-1000-3.gwf")
	writeFile(t, path, stream.Config{Gen: record.Gen6, SkipTOC: true}, 3, 16)

	open := func() *Reader {
		r, err := Open(path, stream.Config{})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = r.Close() })
		return r
	}

	r := open()
	first, err := LoadTOC(r, path, cache, nil)
	if err != nil {
		t.Fatalf("LoadTOC: %v", err)
	}
	if first.NFrames() != 3 {
		t.Fatalf("expected 3 frames, got %d", first.NFrames())
	}
	if _, err := os.Stat(toc.SidecarPath(cache, path)); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := toc.LoadSidecar(cache, path, info)
	if err != nil {
		t.Fatalf("LoadSidecar: %v", err)
	}
	if !cached.Equal(first) {
		t.Error("sidecar differs from scanned toc")
	}

	r2 := open()
	second, err := LoadTOC(r2, path, cache, nil)
	if err != nil {
		t.Fatalf("LoadTOC: %v", err)
	}
	if !second.Equal(first) {
		t.Error("cached toc differs from scanned toc")
	}
	f, err := r2.FrameAt(1)
	if err != nil {
		t.Fatalf("FrameAt(1): %v", err)
	}
	if f.Header.Frame != 1 {
		t.Errorf("expected frame 1, got %d", f.Header.Frame)
	}
}

func TestLoadTOCPersisted(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	path := filepath.Join(dir, "H-TEST-1000-2.gwf")
	writeFile(t, path, stream.Config{Gen: record.Gen8}, 2, 16)

	r, err := Open(path, stream.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()
	got, err := LoadTOC(r, path, cache, nil)
	if err != nil {
		t.Fatalf("LoadTOC: %v", err)
	}
	if got.NFrames() != 2 {
		t.Errorf("expected 2 frames, got %d", got.NFrames())
	}
	if _, err := os.Stat(toc.SidecarPath(cache, path)); !os.IsNotExist(err) {
		t.Errorf("expected no sidecar for a file with a toc, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	found := make(chan File, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, WatchConfig{
			Patterns: []string{filepath.Join(dir, "**", "*.gwf")},
			Settle:   50 * time.Millisecond,
		}, func(f File) { found <- f })
	}()

	// Let the watcher register before creating files.
	time.Sleep(100 * time.Millisecond)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "H-R-500-16.gwf"))

	select {
	case f := <-found:
		if f.Name.Start != 500 || f.Path != filepath.Join(dir, "sub", "H-R-500-16.gwf") {
			t.Errorf("unexpected file %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	select {
	case f := <-found:
		t.Errorf("unexpected extra file %+v", f)
	default:
	}
}

func TestWatchExisting(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "H-R-100-16.gwf"))
	ctx, cancel := context.WithCancel(context.Background())

	var got []File
	err := Watch(ctx, WatchConfig{
		Patterns: []string{filepath.Join(dir, "*.gwf")},
		Existing: true,
	}, func(f File) {
		got = append(got, f)
		cancel()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 || got[0].Name.Start != 100 {
		t.Errorf("expected the existing file, got %+v", got)
	}
}
