package record

import (
	"math"

	"gwframe/internal/format"
)

// EndOfFrame is the FrEndOfFrame trailer closing every frame.
//
// Layouts:
//
//	gen 3-5: run INT_4U, frame INT_4U
//	gen 6-7: run INT_4S, frame INT_4U, chkType INT_4U, chkSum INT_4U
//	gen 8:   run INT_4S, frame INT_4U, GTimeS INT_4U, GTimeN INT_4U
//
// In generations 6-7 ChkSum covers the frame body: every byte from the
// frame header's first byte through ChkType. Generation 8 relies on the
// per-structure checksums instead.
type EndOfFrame struct {
	Gen     Generation
	Run     int32
	Frame   uint32
	ChkType uint32
	ChkSum  uint32
	GTime   GPSTime
}

func (r *EndOfFrame) Class() ClassID         { return ClassEndOfFrame }
func (r *EndOfFrame) Generation() Generation { return r.Gen }

func (r *EndOfFrame) Equal(o Record) bool {
	x, ok := o.(*EndOfFrame)
	return ok && *r == *x
}

// EndOfFile is the FrEndOfFile trailer terminating generation 4+ streams.
//
// Layouts:
//
//	gen 4-5: nFrames, nBytes, chkFlag, chkSum, seekTOC (all INT_4U)
//	gen 6-7: nFrames INT_4U, nBytes INT_8U, chkFlag INT_4U, chkSum INT_4U, seekTOC INT_8U
//	gen 8:   nFrames INT_4U, nBytes INT_8U, seekTOC INT_8U, chkSumFrHeader INT_4U,
//	         chkSum INT_4U, chkSumFile INT_4U
//
// SeekTOC is the distance from the start of the FrEndOfFile structure back
// to the start of the FrTOC structure; zero means the file has no TOC.
type EndOfFile struct {
	Gen          Generation
	NFrames      uint32
	NBytes       uint64
	ChkType      uint32
	ChkSum       uint32
	SeekTOC      uint64
	ChkSumHeader uint32
	ChkSumFile   uint32
}

func (r *EndOfFile) Class() ClassID         { return ClassEndOfFile }
func (r *EndOfFile) Generation() Generation { return r.Gen }

func (r *EndOfFile) Equal(o Record) bool {
	x, ok := o.(*EndOfFile)
	return ok && *r == *x
}

// HasTOC reports whether the file carries a table of contents.
func (r *EndOfFile) HasTOC() bool { return r.SeekTOC != 0 }

// EndOfFrameChecksumOffset is the offset of the frame checksum field within
// a generation 6-7 FrEndOfFrame body.
const EndOfFrameChecksumOffset = 3 * format.Int4Bytes

// EndOfFileChecksumOffset returns the offset of the chkSum field within an
// FrEndOfFile body.
func EndOfFileChecksumOffset(g Generation) int64 {
	switch {
	case g < Gen6:
		return 3 * format.Int4Bytes
	case g < Gen8:
		return format.Int4Bytes + format.Int8Bytes + format.Int4Bytes
	default:
		return format.Int4Bytes + 2*format.Int8Bytes + format.Int4Bytes
	}
}

func init() {
	eof := Register(&Kind{
		Class:   ClassEndOfFrame,
		Name:    "FrEndOfFrame",
		Comment: "End of Frame Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*EndOfFrame)
			c.Gen = g
			return &c
		},
	})

	eof3 := &Codec{
		Description: fields(
			el("run", "INT_4U", "Run number"),
			el("frame", "INT_4U", "Frame number"),
		),
		Bytes: func(Record, Context) int64 { return 2 * format.Int4Bytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFrame)
			e.PutU32(uint32(x.Run))
			e.PutU32(x.Frame)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &EndOfFrame{Gen: ctx.Gen, Run: int32(d.U32()), Frame: d.U32()}
		},
	}

	eof6 := &Codec{
		Description: fields(
			el("run", "INT_4S", "Run number"),
			el("frame", "INT_4U", "Frame number"),
			el("chkType", "INT_4U", "Checksum scheme"),
			el("chkSum", "INT_4U", "Frame checksum"),
		),
		Bytes: func(Record, Context) int64 { return 4 * format.Int4Bytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFrame)
			e.PutI32(x.Run)
			e.PutU32(x.Frame)
			e.PutU32(x.ChkType)
			e.PutU32(x.ChkSum)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &EndOfFrame{Gen: ctx.Gen, Run: d.I32(), Frame: d.U32(), ChkType: d.U32(), ChkSum: d.U32()}
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			p := prev.(*EndOfFrame)
			return &EndOfFrame{Gen: ctx.Gen, Run: p.Run, Frame: p.Frame}, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*EndOfFrame)
			if x.Run < 0 {
				return nil, format.Errorf(format.ErrUnsupportedMigration, "negative run %d has no INT_4U form", x.Run)
			}
			return &EndOfFrame{Gen: ctx.Gen, Run: x.Run, Frame: x.Frame}, nil
		},
	}

	eof8 := &Codec{
		Description: fields(
			el("run", "INT_4S", "Run number"),
			el("frame", "INT_4U", "Frame number"),
			el("GTimeS", "INT_4U", "Frame start time in GPS seconds"),
			el("GTimeN", "INT_4U", "Frame start time residual, integer nanoseconds"),
		),
		Bytes: func(Record, Context) int64 { return 2*format.Int4Bytes + GPSTimeBytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFrame)
			e.PutI32(x.Run)
			e.PutU32(x.Frame)
			putTime(e, x.GTime)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &EndOfFrame{Gen: ctx.Gen, Run: d.I32(), Frame: d.U32(), GTime: readTime(d)}
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			p := prev.(*EndOfFrame)
			x := &EndOfFrame{Gen: ctx.Gen, Run: p.Run, Frame: p.Frame}
			if ctx.Frame != nil {
				x.GTime = ctx.Frame.GTime
			}
			return x, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*EndOfFrame)
			return &EndOfFrame{Gen: ctx.Gen, Run: x.Run, Frame: x.Frame}, nil
		},
	}

	eof.Define(Gen3, eof3).Define(Gen6, eof6).Define(Gen8, eof8)

	file := Register(&Kind{
		Class:   ClassEndOfFile,
		Name:    "FrEndOfFile",
		Comment: "End of File Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*EndOfFile)
			c.Gen = g
			return &c
		},
	})

	file4 := &Codec{
		Description: fields(
			el("nFrames", "INT_4U", "Number of frames in this file"),
			el("nBytes", "INT_4U", "Total number of bytes in this file"),
			el("chkFlag", "INT_4U", "Checksum scheme"),
			el("chkSum", "INT_4U", "File checksum"),
			el("seekTOC", "INT_4U", "Bytes to back up to the table of contents"),
		),
		Bytes: func(Record, Context) int64 { return 5 * format.Int4Bytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFile)
			e.PutU32(x.NFrames)
			e.PutU32(uint32(x.NBytes))
			e.PutU32(x.ChkType)
			e.PutU32(x.ChkSum)
			e.PutU32(uint32(x.SeekTOC))
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &EndOfFile{Gen: ctx.Gen}
			x.NFrames = d.U32()
			x.NBytes = uint64(d.U32())
			x.ChkType = d.U32()
			x.ChkSum = d.U32()
			x.SeekTOC = uint64(d.U32())
			return x
		},
	}

	file6 := &Codec{
		Description: fields(
			el("nFrames", "INT_4U", "Number of frames in this file"),
			el("nBytes", "INT_8U", "Total number of bytes in this file"),
			el("chkFlag", "INT_4U", "Checksum scheme"),
			el("chkSum", "INT_4U", "File checksum"),
			el("seekTOC", "INT_8U", "Bytes to back up to the table of contents"),
		),
		Bytes: func(Record, Context) int64 { return 3*format.Int4Bytes + 2*format.Int8Bytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFile)
			e.PutU32(x.NFrames)
			e.PutU64(x.NBytes)
			e.PutU32(x.ChkType)
			e.PutU32(x.ChkSum)
			e.PutU64(x.SeekTOC)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &EndOfFile{Gen: ctx.Gen}
			x.NFrames = d.U32()
			x.NBytes = d.U64()
			x.ChkType = d.U32()
			x.ChkSum = d.U32()
			x.SeekTOC = d.U64()
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*EndOfFile)
			c.Gen = ctx.Gen
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*EndOfFile)
			if c.NBytes > math.MaxUint32 || c.SeekTOC > math.MaxUint32 {
				return nil, format.Errorf(format.ErrUnsupportedMigration, "file of %d bytes exceeds INT_4U", c.NBytes)
			}
			c.Gen = ctx.Gen
			return &c, nil
		},
	}

	file8 := &Codec{
		Description: fields(
			el("nFrames", "INT_4U", "Number of frames in this file"),
			el("nBytes", "INT_8U", "Total number of bytes in this file"),
			el("seekTOC", "INT_8U", "Bytes to back up to the table of contents"),
			el("chkSumFrHeader", "INT_4U", "Checksum of the file header"),
			el("chkSum", "INT_4U", "Checksum of this structure"),
			el("chkSumFile", "INT_4U", "File checksum"),
		),
		Bytes: func(Record, Context) int64 { return 4*format.Int4Bytes + 2*format.Int8Bytes },
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*EndOfFile)
			e.PutU32(x.NFrames)
			e.PutU64(x.NBytes)
			e.PutU64(x.SeekTOC)
			e.PutU32(x.ChkSumHeader)
			e.PutU32(x.ChkSum)
			e.PutU32(x.ChkSumFile)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &EndOfFile{Gen: ctx.Gen}
			x.NFrames = d.U32()
			x.NBytes = d.U64()
			x.SeekTOC = d.U64()
			x.ChkSumHeader = d.U32()
			x.ChkSum = d.U32()
			x.ChkSumFile = d.U32()
			return x
		},
		// Checksums are recomputed by the writer, so they are not carried
		// across this step.
		Promote: func(prev Record, ctx Context) (Record, error) {
			p := prev.(*EndOfFile)
			return &EndOfFile{Gen: ctx.Gen, NFrames: p.NFrames, NBytes: p.NBytes, SeekTOC: p.SeekTOC}, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*EndOfFile)
			return &EndOfFile{Gen: ctx.Gen, NFrames: x.NFrames, NBytes: x.NBytes, SeekTOC: x.SeekTOC}, nil
		},
	}

	file.Define(Gen4, file4).Define(Gen6, file6).Define(Gen8, file8)
}
