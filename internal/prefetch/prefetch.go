// Package prefetch reads frames of one file concurrently ahead of a
// consumer. Each worker decodes through its own stream.Reader over a shared
// io.ReaderAt; concurrent requests for the same frame share one read.
package prefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gwframe/internal/logging"
	"gwframe/internal/stream"
	"gwframe/internal/toc"
)

// Config configures a Loader.
type Config struct {
	// Workers bounds concurrent frame reads. Defaults to 4.
	Workers int

	// Stream configures the per-worker readers.
	Stream stream.Config

	// TOC is the file's table of contents when the caller already has it,
	// for example from a sidecar cache. Otherwise it is read on first use.
	TOC *toc.TOC

	// Logger for structured logging. If nil, logging is disabled.
	// The loader scopes this logger with component="prefetch".
	Logger *slog.Logger
}

type result struct {
	frame *stream.Frame
	err   error
}

// Loader loads frames by index. It is safe for concurrent use.
type Loader struct {
	src    io.ReaderAt
	size   int64
	cfg    Config
	logger *slog.Logger

	flight singleflight.Group

	// abandoned tracks reads whose callers gave up before they finished.
	abandoned sync.WaitGroup

	mu     sync.Mutex
	idle   []*stream.Reader
	loaded map[int]result
	toc    *toc.TOC
}

// New returns a loader over src, which holds size bytes and must support
// concurrent ReadAt calls.
func New(src io.ReaderAt, size int64, cfg Config) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Loader{
		src:    src,
		size:   size,
		cfg:    cfg,
		logger: logging.Default(cfg.Logger).With("component", "prefetch"),
		loaded: map[int]result{},
		toc:    cfg.TOC,
	}
}

// acquire returns an idle reader or opens a new one.
func (l *Loader) acquire() (*stream.Reader, error) {
	l.mu.Lock()
	if n := len(l.idle); n > 0 {
		r := l.idle[n-1]
		l.idle = l.idle[:n-1]
		l.mu.Unlock()
		return r, nil
	}
	l.mu.Unlock()
	return stream.NewReader(l.src, l.size, l.cfg.Stream)
}

func (l *Loader) release(r *stream.Reader) {
	l.mu.Lock()
	l.idle = append(l.idle, r)
	l.mu.Unlock()
}

// TOC returns the table of contents, reading it once.
func (l *Loader) TOC() (*toc.TOC, error) {
	l.mu.Lock()
	t := l.toc
	l.mu.Unlock()
	if t != nil {
		return t, nil
	}
	v, err, _ := l.flight.Do("toc", func() (any, error) {
		r, err := l.acquire()
		if err != nil {
			return nil, err
		}
		defer l.release(r)
		return r.TOC()
	})
	if err != nil {
		return nil, err
	}
	t = v.(*toc.TOC)
	l.mu.Lock()
	l.toc = t
	l.mu.Unlock()
	return t, nil
}

// NFrames returns the number of frames in the file.
func (l *Loader) NFrames() (int, error) {
	t, err := l.TOC()
	if err != nil {
		return 0, err
	}
	return t.NFrames(), nil
}

// fetch reads frame i into the loaded set unless it is already there.
func (l *Loader) fetch(ctx context.Context, i int) error {
	l.mu.Lock()
	_, ok := l.loaded[i]
	l.mu.Unlock()
	if ok {
		return nil
	}
	t, err := l.TOC()
	if err != nil {
		return err
	}
	ch := l.flight.DoChan(strconv.Itoa(i), func() (any, error) {
		r, err := l.acquire()
		if err != nil {
			return nil, err
		}
		defer l.release(r)
		r.SetTOC(t)
		f, err := r.FrameAt(i)
		l.mu.Lock()
		l.loaded[i] = result{frame: f, err: err}
		l.mu.Unlock()
		if err != nil {
			l.logger.Debug("frame read failed", "index", i, "error", err)
		}
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		// The read keeps going for any other waiter; drop its frame once it
		// lands so nothing is left behind for a caller that gave up.
		l.abandoned.Add(1)
		go func() {
			defer l.abandoned.Done()
			<-ch
			l.mu.Lock()
			delete(l.loaded, i)
			l.mu.Unlock()
		}()
		return ctx.Err()
	}
}

// Load reads the given frames with at most Workers reads in flight. Frame
// read errors are kept for Frame to return; Load only fails when ctx is
// done or a reader cannot be opened.
func (l *Loader) Load(ctx context.Context, indices ...int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for _, i := range indices {
		g.Go(func() error { return l.fetch(ctx, i) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	return nil
}

// Frame returns frame i, reading it now if it was not prefetched. The
// frame is handed over to the caller and forgotten by the loader.
func (l *Loader) Frame(ctx context.Context, i int) (*stream.Frame, error) {
	if err := l.fetch(ctx, i); err != nil {
		return nil, err
	}
	l.mu.Lock()
	res, ok := l.loaded[i]
	delete(l.loaded, i)
	l.mu.Unlock()
	if !ok {
		// Taken by a concurrent Frame call for the same index.
		return l.Frame(ctx, i)
	}
	return res.frame, res.err
}

// Each calls fn for every frame in order while up to Workers following
// frames load in the background. It stops at the first error from fn or
// from a frame read.
func (l *Loader) Each(ctx context.Context, fn func(i int, f *stream.Frame) error) error {
	n, err := l.NFrames()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan chan result, l.cfg.Workers)
	go func() {
		defer close(slots)
		for i := range n {
			s := make(chan result, 1)
			select {
			case slots <- s:
			case <-ctx.Done():
				return
			}
			go func() {
				f, err := l.Frame(ctx, i)
				s <- result{frame: f, err: err}
			}()
		}
	}()

	i := 0
	for s := range slots {
		res := <-s
		if res.err != nil {
			return fmt.Errorf("frame %d: %w", i, res.err)
		}
		if err := fn(i, res.frame); err != nil {
			return err
		}
		i++
	}
	return ctx.Err()
}

// Close waits for abandoned reads and releases the idle readers. Readers
// over a shared io.ReaderAt hold no resources of their own.
func (l *Loader) Close() error {
	l.abandoned.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idle = nil
	clear(l.loaded)
	return nil
}
