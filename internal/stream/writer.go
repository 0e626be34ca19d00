package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gwframe/internal/checksum"
	"gwframe/internal/format"
	"gwframe/internal/logging"
	"gwframe/internal/record"
	"gwframe/internal/toc"
)

// Writer produces a frame file. Call Close to write the table of contents
// and end-of-file trailer; a stream that is not closed is truncated.
type Writer struct {
	cfg    Config
	gen    record.Generation
	out    *bufio.Writer
	closer io.Closer
	header format.Header
	filter *checksum.Filter
	enc    *format.Encoder
	pos    int64

	known   map[record.ClassID]bool // classes whose dictionary was written
	dictSeq [2]uint32               // next FrSH and FrSE instance
	toc     *toc.Builder
	frame   *record.FrameH // open frame
	frames  uint32
	err     error
	closed  bool

	logger *slog.Logger
}

// NewWriter writes the file header to w and returns a Writer.
func NewWriter(w io.Writer, cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if !cfg.Gen.Valid() {
		return nil, fmt.Errorf("%w: cannot write generation %d", format.ErrFormat, cfg.Gen)
	}
	wr := &Writer{
		cfg:    cfg,
		gen:    cfg.Gen,
		out:    bufio.NewWriterSize(w, 64<<10),
		filter: checksum.NewFilter(checksum.ScopeFile),
		enc:    format.NewEncoder(cfg.Order, nil),
		known:  map[record.ClassID]bool{},
		logger: logging.Default(cfg.Logger).With("component", "stream-writer"),
	}
	if cfg.Gen.HasEndOfFile() && !cfg.SkipTOC {
		wr.toc = toc.NewBuilder(cfg.Gen)
	}
	wr.header = format.NewHeader(uint8(cfg.Gen), cfg.Gen.MinorVersion(), cfg.Order, cfg.Library, uint8(cfg.checksum()))
	raw := wr.header.Encode()
	wr.emit(raw[:])
	if wr.err != nil {
		return nil, wr.err
	}
	return wr, nil
}

// Create creates the file at path and returns a Writer that closes it.
func Create(path string, cfg Config) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Header returns the file header written.
func (w *Writer) Header() format.Header { return w.header }

// Generation returns the generation being written.
func (w *Writer) Generation() record.Generation { return w.gen }

// Pos returns the number of bytes written so far.
func (w *Writer) Pos() int64 { return w.pos }

// Frames returns the number of complete frames written.
func (w *Writer) Frames() int { return int(w.frames) }

func (w *Writer) emit(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.out.Write(p)
	w.filter.Write(p[:n])
	w.pos += int64(n)
	if err != nil {
		w.err = err
	}
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

// WriteStruct writes a single structure with instance number 0, preceded
// by its dictionary the first time its class appears. Frame headers and
// trailers written this way open and close frames as usual; the caller is
// responsible for the PTR_STRUCT fields.
func (w *Writer) WriteStruct(r record.Record) (int64, error) {
	if err := w.dictionary(r.Class()); err != nil {
		return 0, err
	}
	return w.put(r, 0)
}

// WriteFrame writes f. PTR_STRUCT fields are rebuilt from the frame's
// containment and instance numbers are assigned in order, starting from 0
// for each class in each frame.
func (w *Writer) WriteFrame(f *Frame) error {
	if w.err != nil {
		return w.err
	}
	if f.Header == nil {
		return fmt.Errorf("%w: frame without header", format.ErrFormat)
	}
	dets := f.detectors()
	vects := f.vects()
	raw := f.raw()
	nraw := 0
	if raw != nil {
		nraw = 1
	}

	// The dictionary goes before the frame header so it stays outside the
	// frame checksum.
	classes := []record.ClassID{record.ClassFrameH}
	for _, c := range []struct {
		class record.ClassID
		n     int
	}{
		{record.ClassDetector, len(dets)},
		{record.ClassHistory, len(f.History)},
		{record.ClassRawData, nraw},
		{record.ClassAdcData, len(f.Adc)},
		{record.ClassMsg, len(f.Msgs)},
		{record.ClassProcData, len(f.Proc)},
		{record.ClassStatData, len(f.Stats)},
		{record.ClassEvent, len(f.Triggers)},
		{record.ClassSimEvent, len(f.Events)},
		{record.ClassSummary, len(f.Summaries)},
		{record.ClassVect, len(vects)},
	} {
		if c.n > 0 {
			classes = append(classes, c.class)
		}
	}
	classes = append(classes, record.ClassEndOfFrame)
	for _, c := range classes {
		if err := w.dictionary(c); err != nil {
			return err
		}
	}

	ref := func(class record.ClassID, i, n int) record.Ptr {
		if i >= n {
			return record.Ptr{}
		}
		return record.Ptr{Class: class, Instance: uint32(i)}
	}

	h := *f.Header
	h.DetectProc = ref(record.ClassDetector, 0, len(dets))
	h.History = ref(record.ClassHistory, 0, len(f.History))
	h.RawData = ref(record.ClassRawData, 0, nraw)
	h.ProcData = ref(record.ClassProcData, 0, len(f.Proc))
	h.StatData = ref(record.ClassStatData, 0, len(f.Stats))
	h.Event, h.SimEvent = record.Ptr{}, record.Ptr{}
	if w.gen > record.Gen3 {
		h.Event = ref(record.ClassEvent, 0, len(f.Triggers))
		h.SimEvent = ref(record.ClassSimEvent, 0, len(f.Events))
	}
	h.Summary = ref(record.ClassSummary, 0, len(f.Summaries))
	if _, err := w.put(&h, 0); err != nil {
		return err
	}

	detIndex := make(map[*record.Detector]int, len(dets))
	for i, d := range dets {
		detIndex[d] = i
		c := *d
		c.Next = ref(record.ClassDetector, i+1, len(dets))
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, x := range f.History {
		c := *x
		c.Next = ref(record.ClassHistory, i+1, len(f.History))
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}

	nextVect := 0
	vectRef := func(v *record.Vect) record.Ptr {
		if v == nil {
			return record.Ptr{}
		}
		p := record.Ptr{Class: record.ClassVect, Instance: uint32(nextVect)}
		nextVect++
		return p
	}
	detRef := func(d *record.Detector) record.Ptr {
		if d == nil {
			return record.Ptr{}
		}
		return record.Ptr{Class: record.ClassDetector, Instance: uint32(detIndex[d])}
	}

	if raw != nil {
		c := *raw
		c.Gen = w.gen
		c.FirstSer, c.FirstTable, c.More = record.Ptr{}, record.Ptr{}, record.Ptr{}
		c.FirstAdc = ref(record.ClassAdcData, 0, len(f.Adc))
		c.LogMsg = ref(record.ClassMsg, 0, len(f.Msgs))
		if _, err := w.put(&c, 0); err != nil {
			return err
		}
	}
	for i, a := range f.Adc {
		c := *a.AdcData
		c.Next = ref(record.ClassAdcData, i+1, len(f.Adc))
		c.Detector = record.Ptr{}
		if w.gen > record.Gen3 {
			c.Detector = detRef(a.Detector)
		}
		c.Data = vectRef(a.Data)
		c.Aux = vectRef(a.Aux)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, m := range f.Msgs {
		c := *m
		c.Next = ref(record.ClassMsg, i+1, len(f.Msgs))
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, p := range f.Proc {
		c := *p.ProcData
		c.Next = ref(record.ClassProcData, i+1, len(f.Proc))
		c.Data = vectRef(p.Data)
		c.Aux = vectRef(p.Aux)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, s := range f.Stats {
		c := *s.StatData
		c.Next = ref(record.ClassStatData, i+1, len(f.Stats))
		c.Detector = detRef(s.Detector)
		c.Data = vectRef(s.Data)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, t := range f.Triggers {
		c := *t.Event
		c.Next = ref(record.ClassEvent, i+1, len(f.Triggers))
		c.Data = vectRef(t.Data)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, e := range f.Events {
		c := *e.SimEvent
		c.Next = ref(record.ClassSimEvent, i+1, len(f.Events))
		c.Data = vectRef(e.Data)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, s := range f.Summaries {
		c := *s.Summary
		c.Next = ref(record.ClassSummary, i+1, len(f.Summaries))
		c.Moments = vectRef(s.Moments)
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}
	for i, v := range vects {
		c := *v
		c.Next = record.Ptr{}
		if _, err := w.put(&c, uint32(i)); err != nil {
			return err
		}
	}

	end := record.EndOfFrame{Gen: w.gen}
	if f.End != nil {
		end = *f.End
	}
	end.Run, end.Frame = h.Run, h.Frame
	if w.gen >= record.Gen8 {
		end.GTime = h.GTime
	}
	_, err := w.put(&end, 0)
	return err
}

// dictionary writes the FrSH and FrSE structures describing class the
// first time it is called for that class.
func (w *Writer) dictionary(class record.ClassID) error {
	if class == record.ClassSH || class == record.ClassSE || w.known[class] {
		return nil
	}
	d, err := record.Describe(class, w.gen)
	if err != nil {
		return w.fail(err)
	}
	w.known[class] = true
	for _, r := range d.Records(w.gen) {
		seq := &w.dictSeq[0]
		if r.Class() == record.ClassSE {
			seq = &w.dictSeq[1]
		}
		if _, err := w.put(r, *seq); err != nil {
			return err
		}
		*seq++
	}
	return nil
}

// put encodes and emits one structure and returns its offset.
func (w *Writer) put(r record.Record, instance uint32) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	g := w.gen
	ctx := record.Context{Gen: g, Frame: w.frame}
	fh, isFrame := r.(*record.FrameH)
	if isFrame {
		if w.frame != nil {
			return 0, w.fail(fmt.Errorf("%w: frame %d is not terminated", format.ErrFormat, w.frames))
		}
		ctx.Frame = fh
	}
	if eof, ok := r.(*record.EndOfFrame); ok && g.FrameChecksums() {
		c := *eof
		c.ChkType, c.ChkSum = uint32(w.cfg.checksum()), 0
		r = &c
	}

	n, err := record.Bytes(r, ctx)
	if err != nil {
		return 0, w.fail(format.At(err, w.pos, uint16(r.Class()), r.Class().String()))
	}
	hdr := g.StructHeaderBytes()
	sh := structHeader{length: uint64(hdr + n), class: r.Class(), instance: instance}
	if g.StructChecksums() && r.Class() != record.ClassEndOfFile {
		sh.chkType = w.cfg.checksum()
	}
	trailer := structTrailer(g, sh)
	if trailer {
		sh.length += trailerBytes
	}
	if err := checkStructHeader(g, sh); err != nil {
		return 0, w.fail(format.At(err, w.pos, uint16(r.Class()), r.Class().String()))
	}

	w.enc.Reset()
	putStructHeader(w.enc, g, sh)
	if err := record.Write(w.enc, r, ctx); err != nil {
		return 0, w.fail(format.At(err, w.pos, uint16(r.Class()), r.Class().String()))
	}
	buf := w.enc.Bytes()
	if int64(len(buf)) != hdr+n {
		return 0, w.fail(&format.Error{Kind: format.ErrFormat, Offset: w.pos, Class: uint16(r.Class()),
			Struct: r.Class().String(), Expected: hdr + n, Actual: len(buf), Err: errors.New("encoded size")})
	}

	start := w.pos
	if isFrame {
		if g.FrameChecksums() {
			w.filter.Begin(checksum.ScopeFrame)
		}
		w.frame = fh
	}
	if trailer {
		w.filter.Begin(checksum.ScopeStruct)
	}
	order := w.cfg.Order
	switch r.Class() {
	case record.ClassEndOfFrame:
		if g.FrameChecksums() {
			cut := hdr + record.EndOfFrameChecksumOffset
			w.emit(buf[:cut])
			sum := w.filter.End(checksum.ScopeFrame)
			if w.cfg.checksum() == checksum.CRC {
				order.PutUint32(buf[cut:], sum)
			}
			w.emit(buf[cut:])
		} else {
			w.emit(buf)
		}
		w.frame = nil
		w.frames++
	case record.ClassEndOfFile:
		w.emitEndOfFile(buf, hdr)
	default:
		w.emit(buf)
	}
	if trailer {
		var t [trailerBytes]byte
		order.PutUint32(t[:], w.filter.End(checksum.ScopeStruct))
		w.emit(t[:])
	}
	if w.err != nil {
		return 0, w.err
	}
	if w.toc != nil {
		if err := w.toc.Add(start, instance, r); err != nil {
			return 0, w.fail(err)
		}
	}
	return start, nil
}

// emitEndOfFile writes the end-of-file trailer, filling its checksum
// fields from the bytes that precede them.
func (w *Writer) emitEndOfFile(buf []byte, hdr int64) {
	crc := w.cfg.checksum() == checksum.CRC
	order := w.cfg.Order
	off := hdr + record.EndOfFileChecksumOffset(w.gen)
	if w.gen < record.Gen8 {
		w.emit(buf[:off])
		if crc {
			order.PutUint32(buf[off:], w.filter.Value(checksum.ScopeFile))
		}
		w.emit(buf[off:])
		return
	}
	if crc {
		order.PutUint32(buf[off:], checksum.Checksum(buf[:off]))
	}
	fileOff := off + format.Int4Bytes
	w.emit(buf[:fileOff])
	if crc {
		order.PutUint32(buf[fileOff:], w.filter.Value(checksum.ScopeFile))
	}
	w.emit(buf[fileOff:])
}

// Close writes the table of contents and end-of-file trailer (generation 4
// and later), flushes, and closes the file if the Writer opened it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.finish()
	if ferr := w.out.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err == nil {
		w.logger.Debug("stream written", "generation", w.gen, "frames", w.frames, "bytes", w.pos)
	}
	return err
}

func (w *Writer) finish() error {
	if w.err != nil {
		return w.err
	}
	if w.frame != nil {
		return w.fail(fmt.Errorf("%w: frame %d is not terminated", format.ErrFormat, w.frames))
	}
	if !w.gen.HasEndOfFile() {
		return nil
	}

	tocPos := int64(-1)
	if w.toc != nil {
		if err := w.dictionary(record.ClassTOC); err != nil {
			return err
		}
		if err := w.dictionary(record.ClassEndOfFile); err != nil {
			return err
		}
		t, err := w.toc.TOC()
		if err != nil {
			return w.fail(err)
		}
		w.toc = nil
		if tocPos, err = w.put(t, 0); err != nil {
			return err
		}
	} else if err := w.dictionary(record.ClassEndOfFile); err != nil {
		return err
	}

	eof := &record.EndOfFile{Gen: w.gen, NFrames: w.frames}
	n, err := record.Bytes(eof, record.Context{Gen: w.gen})
	if err != nil {
		return w.fail(err)
	}
	start := w.pos
	eof.NBytes = uint64(start + w.gen.StructHeaderBytes() + n)
	if tocPos >= 0 {
		eof.SeekTOC = uint64(start - tocPos)
	}
	if w.gen < record.Gen8 {
		eof.ChkType = uint32(w.cfg.checksum())
	} else if w.cfg.checksum() == checksum.CRC {
		raw := w.header.Encode()
		eof.ChkSumHeader = checksum.Checksum(raw[:])
	}
	_, err = w.put(eof, 0)
	return err
}
