package stream

import (
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

// Entry is one structure returned by Reader.Next.
type Entry = toc.Entry

// Reader decodes a frame file from an io.ReaderAt.
//
// Reads advance a cursor that starts after the file header. Next returns
// structures one at a time; ReadFrame returns whole frames. FrameAt, ReadAt,
// EndOfFile, TOC and Dictionary may be called at any point; only FrameAt
// moves the cursor.
type Reader struct {
	src    io.ReaderAt
	closer io.Closer
	size   int64
	cfg    Config
	header format.Header
	gen    record.Generation
	order  format.Order
	logger *slog.Logger

	pos        int64
	filter     *checksum.Filter
	fileScope  bool // file checksum covers every byte read so far
	frame      *record.FrameH
	frameIndex int
	done       bool
	err        error // sticky non-integrity error

	dict        map[record.ClassID]*record.Description
	sh          *record.SH
	ses         []*record.SE
	dictScanned bool

	toc      *toc.TOC
	eof      *record.EndOfFile
	eofStart int64
}

// NewReader reads and validates the file header of src, which holds size
// bytes.
func NewReader(src io.ReaderAt, size int64, cfg Config) (*Reader, error) {
	cfg = cfg.withDefaults()
	var buf [format.HeaderSize]byte
	if size < format.HeaderSize {
		return nil, format.Mismatch(format.ErrTruncated, 0, format.HeaderSize, size)
	}
	if err := readFullAt(src, buf[:], 0); err != nil {
		return nil, err
	}
	h, err := format.DecodeAndValidate(buf[:], uint8(record.Oldest), uint8(record.Newest))
	if err != nil {
		return nil, err
	}
	r := &Reader{
		src:        src,
		size:       size,
		cfg:        cfg,
		header:     h,
		gen:        record.Generation(h.Version()),
		order:      h.Order(),
		logger:     logging.Default(cfg.Logger).With("component", "stream-reader"),
		pos:        format.HeaderSize,
		filter:     checksum.NewFilter(checksum.ScopeFile),
		fileScope:  true,
		frameIndex: -1,
		dict:       map[record.ClassID]*record.Description{},
	}
	r.filter.Write(buf[:])
	return r, nil
}

// Open opens the file at path for reading.
func Open(path string, cfg Config) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, info.Size(), cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Close closes the underlying file if the Reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Header returns the file header.
func (r *Reader) Header() format.Header { return r.header }

// Generation returns the generation of the file.
func (r *Reader) Generation() record.Generation { return r.gen }

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// Pos returns the offset of the next structure.
func (r *Reader) Pos() int64 { return r.pos }

// clone returns an independent cursor over the same source, positioned
// after the file header, that ignores checksums.
func (r *Reader) clone() *Reader {
	raw := r.header.Encode()
	c := &Reader{
		src:        r.src,
		size:       r.size,
		cfg:        r.cfg,
		header:     r.header,
		gen:        r.gen,
		order:      r.order,
		logger:     r.logger,
		pos:        format.HeaderSize,
		filter:     checksum.NewFilter(checksum.ScopeFile),
		fileScope:  true,
		frameIndex: -1,
		dict:       map[record.ClassID]*record.Description{},
	}
	c.cfg.Verifier = Ignore()
	c.filter.Write(raw[:])
	return c
}

// readStruct reads the structure starting at pos.
func (r *Reader) readStruct(pos int64) (structHeader, []byte, error) {
	hdr := r.gen.StructHeaderBytes()
	if pos+hdr > r.size {
		return structHeader{}, nil, format.Mismatch(format.ErrTruncated, pos, hdr, r.size-pos)
	}
	head := make([]byte, hdr)
	if err := readFullAt(r.src, head, pos); err != nil {
		return structHeader{}, nil, err
	}
	sh := readStructHeader(format.NewDecoder(r.order, head, pos), r.gen)
	least := uint64(hdr)
	if structTrailer(r.gen, sh) {
		least += trailerBytes
	}
	if sh.length < least {
		return structHeader{}, nil, &format.Error{Kind: format.ErrFormat, Offset: pos, Class: uint16(sh.class),
			Struct: sh.class.String(), Expected: least, Actual: sh.length, Err: errors.New("structure length")}
	}
	if sh.length > uint64(r.size-pos) {
		return structHeader{}, nil, &format.Error{Kind: format.ErrTruncated, Offset: pos, Class: uint16(sh.class),
			Struct: sh.class.String(), Expected: sh.length, Actual: r.size - pos}
	}
	raw := make([]byte, sh.length)
	copy(raw, head)
	if err := readFullAt(r.src, raw[hdr:], pos+hdr); err != nil {
		return structHeader{}, nil, err
	}
	return sh, raw, nil
}

// decode decodes the body of the structure at pos.
func (r *Reader) decode(pos int64, sh structHeader, raw []byte) (record.Record, error) {
	hdr := r.gen.StructHeaderBytes()
	end := int64(len(raw))
	if structTrailer(r.gen, sh) {
		end -= trailerBytes
	}
	ctx := record.Context{Gen: r.gen, Frame: r.frame}
	rec, err := record.Create(format.NewDecoder(r.order, raw[hdr:end], pos+hdr), sh.class, ctx)
	if err != nil {
		return nil, format.At(err, pos, uint16(sh.class), sh.class.String())
	}
	return rec, nil
}

func (r *Reader) mismatch(scope checksum.Scope, pos int64, class record.ClassID, expected, actual uint32) error {
	if expected == actual {
		return nil
	}
	frame := -1
	if r.frame != nil {
		frame = r.frameIndex
	}
	return r.cfg.Verifier.Mismatch(Mismatch{
		Scope: scope, Offset: pos, Class: class, Frame: frame, Expected: expected, Actual: actual,
	})
}

// verifyStruct checks a generation 8 structure trailer.
func (r *Reader) verifyStruct(pos int64, sh structHeader, raw []byte) error {
	if !structTrailer(r.gen, sh) {
		return nil
	}
	end := len(raw) - trailerBytes
	return r.mismatch(checksum.ScopeStruct, pos, sh.class, r.order.Uint32(raw[end:]), checksum.Checksum(raw[:end]))
}

// Next returns the next structure. At the end of the stream it returns
// io.EOF. A checksum mismatch is returned together with the decoded
// structure; any other error stops the reader.
func (r *Reader) Next() (Entry, error) {
	return r.next()
}

func (r *Reader) next() (Entry, error) {
	if r.err != nil {
		return Entry{}, r.err
	}
	if r.done {
		return Entry{}, io.EOF
	}
	if r.pos >= r.size {
		if !r.gen.HasEndOfFile() && r.frame == nil {
			r.done = true
			return Entry{}, io.EOF
		}
		return Entry{}, r.stop(format.Mismatch(format.ErrTruncated, r.pos, "FrEndOfFile", "end of stream"))
	}

	start := r.pos
	sh, raw, err := r.readStruct(start)
	if err != nil {
		return Entry{}, r.stop(err)
	}
	rec, err := r.decode(start, sh, raw)
	if err != nil {
		return Entry{}, r.stop(err)
	}
	r.pos += int64(sh.length)

	integrity := r.account(start, raw, rec)
	if err := r.verifyStruct(start, sh, raw); integrity == nil {
		integrity = err
	}
	if _, ok := rec.(*record.EndOfFrame); ok {
		r.frame = nil
	}
	r.collectDictionary(rec)

	if eof, ok := rec.(*record.EndOfFile); ok {
		if eof.NBytes != uint64(r.pos) || r.pos != r.size {
			return Entry{}, r.stop(&format.Error{Kind: format.ErrFormat, Offset: start, Class: uint16(sh.class),
				Struct: sh.class.String(), Expected: r.size, Actual: eof.NBytes, Err: errors.New("file length")})
		}
		r.eof, r.eofStart = eof, start
		r.done = true
	}
	return Entry{Pos: start, Instance: sh.instance, Record: rec}, integrity
}

func (r *Reader) stop(err error) error {
	r.err = err
	return err
}

// account feeds raw through the running checksums and verifies the frame
// and file checksums stored in trailers.
func (r *Reader) account(start int64, raw []byte, rec record.Record) error {
	hdr := r.gen.StructHeaderBytes()
	switch x := rec.(type) {
	case *record.FrameH:
		r.frameIndex++
		if r.gen.FrameChecksums() {
			r.filter.Begin(checksum.ScopeFrame)
		}
		r.filter.Write(raw)
		r.frame = x
		return nil

	case *record.EndOfFrame:
		if !r.gen.FrameChecksums() {
			r.filter.Write(raw)
			return nil
		}
		cut := hdr + record.EndOfFrameChecksumOffset
		r.filter.Write(raw[:cut])
		active := r.filter.Active(checksum.ScopeFrame)
		sum := r.filter.End(checksum.ScopeFrame)
		r.filter.Write(raw[cut:])
		if !active || r.frame == nil || x.ChkType != uint32(checksum.CRC) {
			return nil
		}
		return r.mismatch(checksum.ScopeFrame, start, record.ClassEndOfFrame, x.ChkSum, sum)

	case *record.EndOfFile:
		off := hdr + record.EndOfFileChecksumOffset(r.gen)
		if r.gen < record.Gen8 {
			r.filter.Write(raw[:off])
			sum := r.filter.Value(checksum.ScopeFile)
			r.filter.Write(raw[off:])
			if !r.fileScope || x.ChkType != uint32(checksum.CRC) {
				return nil
			}
			return r.mismatch(checksum.ScopeFile, start, record.ClassEndOfFile, x.ChkSum, sum)
		}
		fileOff := off + format.Int4Bytes
		r.filter.Write(raw[:fileOff])
		sum := r.filter.Value(checksum.ScopeFile)
		r.filter.Write(raw[fileOff:])
		if r.header.ChecksumScheme() != uint8(checksum.CRC) {
			return nil
		}
		head := r.header.Encode()
		if err := r.mismatch(checksum.ScopeHeader, 0, record.ClassEndOfFile, x.ChkSumHeader, checksum.Checksum(head[:])); err != nil {
			return err
		}
		if err := r.mismatch(checksum.ScopeStruct, start, record.ClassEndOfFile, x.ChkSum, checksum.Checksum(raw[:off])); err != nil {
			return err
		}
		if !r.fileScope {
			return nil
		}
		return r.mismatch(checksum.ScopeFile, start, record.ClassEndOfFile, x.ChkSumFile, sum)
	}
	r.filter.Write(raw)
	return nil
}

// collectDictionary groups FrSH/FrSE runs into descriptions.
func (r *Reader) collectDictionary(rec record.Record) {
	switch x := rec.(type) {
	case *record.SH:
		r.flushDictionary()
		r.sh = x
	case *record.SE:
		if r.sh != nil {
			r.ses = append(r.ses, x)
		}
	default:
		r.flushDictionary()
	}
}

func (r *Reader) flushDictionary() {
	if r.sh == nil {
		return
	}
	r.dict[r.sh.ID] = record.DescriptionFrom(r.sh, r.ses)
	r.sh, r.ses = nil, nil
}

// ReadFrame reads up to and including the next end-of-frame trailer and
// returns the assembled frame. It returns io.EOF when no frames remain.
//
// On a checksum mismatch inside a frame the frame is read to its end and
// the mismatch is returned, so the next call continues with the following
// frame.
func (r *Reader) ReadFrame() (*Frame, error) {
	var (
		head  *record.FrameH
		objs  map[record.Ptr]record.Record
		first error
	)
	for {
		e, err := r.next()
		if err != nil && !errors.Is(err, format.ErrIntegrity) {
			if errors.Is(err, io.EOF) && head != nil {
				err = r.stop(format.Mismatch(format.ErrTruncated, r.pos, "FrEndOfFrame", "end of stream"))
			}
			return nil, err
		}
		if err != nil {
			if head == nil && e.Record.Class() != record.ClassFrameH {
				return nil, err
			}
			if first == nil {
				first = err
			}
		}

		switch x := e.Record.(type) {
		case *record.FrameH:
			if head != nil {
				return nil, r.stop(&format.Error{Kind: format.ErrFormat, Offset: e.Pos, Class: uint16(record.ClassFrameH),
					Struct: "FrameH", Err: errors.New("frame header inside an open frame")})
			}
			head = x
			objs = map[record.Ptr]record.Record{}
		case *record.EndOfFrame:
			if head == nil {
				continue
			}
			if first != nil {
				return nil, first
			}
			return assemble(head, objs, x)
		case *record.EndOfFile:
			if head != nil {
				return nil, r.stop(format.Mismatch(format.ErrTruncated, e.Pos, "FrEndOfFrame", "FrEndOfFile"))
			}
		case *record.SH, *record.SE, *toc.TOC:
		default:
			if head != nil {
				objs[record.Ptr{Class: x.Class(), Instance: e.Instance}] = x
			}
		}
	}
}

// FrameAt reads frame i using the table of contents.
func (r *Reader) FrameAt(i int) (*Frame, error) {
	t, err := r.TOC()
	if err != nil {
		return nil, err
	}
	pos, ok := t.FramePosition(i)
	if !ok {
		return nil, format.Mismatch(format.ErrOutOfBounds, -1, t.NFrames(), i)
	}
	r.seek(pos, i-1)
	return r.ReadFrame()
}

// seek moves the cursor to pos. The file checksum is no longer verified.
func (r *Reader) seek(pos int64, frameIndex int) {
	r.pos = pos
	r.fileScope = false
	r.filter.End(checksum.ScopeFile)
	r.filter.End(checksum.ScopeFrame)
	r.frame = nil
	r.frameIndex = frameIndex
	r.done = false
	r.err = nil
}

// ReadAt decodes the structure at pos without moving the cursor. Only the
// structure's own checksum is verified.
func (r *Reader) ReadAt(pos int64) (Entry, error) {
	sh, raw, err := r.readStruct(pos)
	if err != nil {
		return Entry{}, err
	}
	saved := r.frame
	r.frame = nil
	rec, err := r.decode(pos, sh, raw)
	if err == nil {
		err = r.verifyStruct(pos, sh, raw)
	}
	r.frame = saved
	if rec == nil {
		return Entry{}, err
	}
	return Entry{Pos: pos, Instance: sh.instance, Record: rec}, err
}

// EndOfFile reads the end-of-file trailer from the end of the file.
func (r *Reader) EndOfFile() (*record.EndOfFile, error) {
	if r.eof != nil {
		return r.eof, nil
	}
	if !r.gen.HasEndOfFile() {
		return nil, fmt.Errorf("%w: generation %d has no end-of-file trailer", format.ErrFormat, r.gen)
	}
	n, err := record.Bytes(&record.EndOfFile{Gen: r.gen}, record.Context{Gen: r.gen})
	if err != nil {
		return nil, err
	}
	start := r.size - r.gen.StructHeaderBytes() - n
	if start < format.HeaderSize {
		return nil, format.Mismatch(format.ErrTruncated, r.size, "FrEndOfFile", r.size)
	}
	e, err := r.ReadAt(start)
	if err != nil {
		return nil, err
	}
	eof, ok := e.Record.(*record.EndOfFile)
	if !ok || eof.NBytes != uint64(r.size) {
		return nil, &format.Error{Kind: format.ErrFormat, Offset: start, Class: uint16(e.Record.Class()),
			Struct: e.Record.Class().String(), Expected: "FrEndOfFile", Err: errors.New("no end-of-file trailer")}
	}
	r.eof, r.eofStart = eof, start
	return eof, nil
}

// TOC returns the table of contents. Files without one are scanned and the
// rebuilt table is cached.
func (r *Reader) TOC() (*toc.TOC, error) {
	if r.toc != nil {
		return r.toc, nil
	}
	if r.gen.HasEndOfFile() {
		eof, err := r.EndOfFile()
		if err != nil {
			return nil, err
		}
		if eof.HasTOC() {
			pos := r.eofStart - int64(eof.SeekTOC)
			if pos < format.HeaderSize {
				return nil, format.Mismatch(format.ErrFormat, r.eofStart, "FrTOC", eof.SeekTOC)
			}
			e, err := r.ReadAt(pos)
			if err != nil {
				return nil, err
			}
			t, ok := e.Record.(*toc.TOC)
			if !ok {
				return nil, &format.Error{Kind: format.ErrFormat, Offset: pos, Class: uint16(e.Record.Class()),
					Struct: e.Record.Class().String(), Expected: "FrTOC"}
			}
			r.toc = t
			return t, nil
		}
	}
	r.logger.Debug("no table of contents, scanning", "size", r.size)
	t, err := toc.Scan(r.gen, r.clone())
	if err != nil {
		return nil, err
	}
	r.toc = t
	return t, nil
}

// SetTOC installs a table of contents obtained elsewhere, such as a cached
// scan, so that FrameAt does not rescan the file.
func (r *Reader) SetTOC(t *toc.TOC) { r.toc = t }

// Dictionary returns the description of class stored in the file.
func (r *Reader) Dictionary(class record.ClassID) (*record.Description, bool, error) {
	if d, ok := r.dict[class]; ok {
		return d, true, nil
	}
	if !r.dictScanned {
		c := r.clone()
		for {
			_, err := c.next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, false, err
			}
		}
		c.flushDictionary()
		for id, d := range c.dict {
			if _, ok := r.dict[id]; !ok {
				r.dict[id] = d
			}
		}
		r.dictScanned = true
	}
	d, ok := r.dict[class]
	return d, ok, nil
}

func readFullAt(reader io.ReaderAt, buf []byte, offset int64) error {
	for len(buf) > 0 {
		n, err := reader.ReadAt(buf, offset)
		if n > 0 {
			buf = buf[n:]
			offset += int64(n)
		}
		if err != nil {
			if err == io.EOF && len(buf) == 0 {
				return nil
			}
			if err == io.EOF {
				return format.Mismatch(format.ErrTruncated, offset, len(buf), 0)
			}
			return err
		}
	}
	return nil
}
