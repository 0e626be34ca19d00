package prefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gwframe/internal/format"
	"gwframe/internal/record"
	"gwframe/internal/stream"
)

func writeFile(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := stream.NewWriter(&buf, stream.Config{Gen: record.Gen8})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := range n {
		f := &stream.Frame{
			Header:  &record.FrameH{Gen: record.Gen8, Name: "V1", Frame: uint32(i), Dt: 1},
			History: []*record.History{{Gen: record.Gen8, Name: "daq", Comment: fmt.Sprintf("frame-%03d", i)}},
		}
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestLoadAndFrame(t *testing.T) {
	data := writeFile(t, 10)
	l := New(bytes.NewReader(data), int64(len(data)), Config{Workers: 3})
	defer l.Close()

	n, err := l.NFrames()
	if err != nil || n != 10 {
		t.Fatalf("NFrames = %d, %v", n, err)
	}
	ctx := context.Background()
	if err := l.Load(ctx, 2, 3, 4, 5); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, i := range []int{5, 2, 9, 0} {
		f, err := l.Frame(ctx, i)
		if err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
		if f.Header.Frame != uint32(i) || f.History[0].Comment != fmt.Sprintf("frame-%03d", i) {
			t.Fatalf("Frame(%d): got frame %d", i, f.Header.Frame)
		}
	}
	if _, err := l.Frame(ctx, 10); !errors.Is(err, format.ErrOutOfBounds) {
		t.Fatalf("Frame(10): expected ErrOutOfBounds, got %v", err)
	}
}

func TestConcurrentFrame(t *testing.T) {
	data := writeFile(t, 4)
	l := New(bytes.NewReader(data), int64(len(data)), Config{Workers: 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for g := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			i := g % 4
			f, err := l.Frame(ctx, i)
			if err == nil && f.Header.Frame != uint32(i) {
				err = fmt.Errorf("frame %d: got %d", i, f.Header.Frame)
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEach(t *testing.T) {
	data := writeFile(t, 25)
	l := New(bytes.NewReader(data), int64(len(data)), Config{Workers: 4})
	var got []uint32
	err := l.Each(context.Background(), func(i int, f *stream.Frame) error {
		if int(f.Header.Frame) != i {
			return fmt.Errorf("index %d carries frame %d", i, f.Header.Frame)
		}
		got = append(got, f.Header.Frame)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 frames, got %d", len(got))
	}
}

func TestEachStops(t *testing.T) {
	data := writeFile(t, 20)
	l := New(bytes.NewReader(data), int64(len(data)), Config{})
	stop := errors.New("stop")
	calls := 0
	err := l.Each(context.Background(), func(i int, f *stream.Frame) error {
		calls++
		if i == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || calls != 4 {
		t.Fatalf("Each: calls=%d err=%v", calls, err)
	}
}

func TestEachCorruptFrame(t *testing.T) {
	data := writeFile(t, 6)
	i := bytes.Index(data, []byte("frame-004"))
	if i < 0 {
		t.Fatal("frame-004 not found")
	}
	data[i] ^= 0xff
	l := New(bytes.NewReader(data), int64(len(data)), Config{Workers: 2})
	seen := 0
	err := l.Each(context.Background(), func(int, *stream.Frame) error {
		seen++
		return nil
	})
	if !errors.Is(err, format.ErrIntegrity) || seen != 4 {
		t.Fatalf("Each: seen=%d err=%v", seen, err)
	}
}

func TestLoadCanceled(t *testing.T) {
	data := writeFile(t, 3)
	l := New(bytes.NewReader(data), int64(len(data)), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Frame(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Frame: %v", err)
	}
}

// gatedReader holds every read made after armed is set until gate closes.
type gatedReader struct {
	r       *bytes.Reader
	armed   atomic.Bool
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (g *gatedReader) ReadAt(p []byte, off int64) (int, error) {
	if g.armed.Load() {
		g.once.Do(func() { close(g.started) })
		<-g.gate
	}
	return g.r.ReadAt(p, off)
}

func TestCanceledLoadLeavesNothingLoaded(t *testing.T) {
	data := writeFile(t, 3)
	g := &gatedReader{r: bytes.NewReader(data), gate: make(chan struct{}), started: make(chan struct{})}
	l := New(g, int64(len(data)), Config{})
	if _, err := l.NFrames(); err != nil {
		t.Fatalf("NFrames: %v", err)
	}
	g.armed.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Load(ctx, 1) }()
	<-g.started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Load: %v", err)
	}

	close(g.gate)
	l.abandoned.Wait()
	l.mu.Lock()
	n := len(l.loaded)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("%d frames left loaded after cancel", n)
	}

	// The frame is read again on demand.
	f, err := l.Frame(context.Background(), 1)
	if err != nil || f.Header.Frame != 1 {
		t.Fatalf("Frame(1) = %v, %v", f, err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
