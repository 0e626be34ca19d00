package record

import (
	"slices"

	"gwframe/internal/format"
)

// FrameH is the frame header structure opening every frame.
//
// DataQuality exists from generation 6; LocalTime only before it. Event and
// SimEvent are null in generation 3, which has neither list.
type FrameH struct {
	Gen         Generation
	Name        string
	Run         int32
	Frame       uint32
	DataQuality uint32
	GTime       GPSTime
	ULeapS      uint16
	LocalTime   int32
	Dt          float64

	DetectProc Ptr
	History    Ptr
	RawData    Ptr
	ProcData   Ptr
	StatData   Ptr
	Event      Ptr
	SimEvent   Ptr
	Summary    Ptr
}

func (r *FrameH) Class() ClassID         { return ClassFrameH }
func (r *FrameH) Generation() Generation { return r.Gen }

func (r *FrameH) Equal(o Record) bool {
	x, ok := o.(*FrameH)
	return ok && *r == *x
}

// End returns the GPS time at which the frame ends.
func (r *FrameH) End() GPSTime { return r.GTime.Add(r.Dt) }

func frameHPtrs(g Generation) int64 {
	n := int64(8)
	if g == Gen3 {
		n = 6
	}
	return n * g.PtrBytes()
}

func putFrameHPtrs(e *format.Encoder, x *FrameH, g Generation) {
	putPtr(e, g, x.DetectProc)
	putPtr(e, g, x.History)
	putPtr(e, g, x.RawData)
	putPtr(e, g, x.ProcData)
	putPtr(e, g, x.StatData)
	if g > Gen3 {
		putPtr(e, g, x.Event)
		putPtr(e, g, x.SimEvent)
	}
	putPtr(e, g, x.Summary)
}

func readFrameHPtrs(d *format.Decoder, x *FrameH, g Generation) {
	x.DetectProc = readPtr(d, g)
	x.History = readPtr(d, g)
	x.RawData = readPtr(d, g)
	x.ProcData = readPtr(d, g)
	x.StatData = readPtr(d, g)
	if g > Gen3 {
		x.Event = readPtr(d, g)
		x.SimEvent = readPtr(d, g)
	}
	x.Summary = readPtr(d, g)
}

var frameHRefs = []Element{
	el("detectProc", "PTR_STRUCT(FrDetector *)", "Detector data"),
	el("history", "PTR_STRUCT(FrHistory *)", "History records"),
	el("rawData", "PTR_STRUCT(FrRawData *)", "Raw data"),
	el("procData", "PTR_STRUCT(FrProcData *)", "Post-processed data"),
	el("statData", "PTR_STRUCT(FrStatData *)", "Static data"),
	el("event", "PTR_STRUCT(FrEvent *)", "Events found by online analysis"),
	el("simEvent", "PTR_STRUCT(FrSimEvent *)", "Simulated events"),
	el("summary", "PTR_STRUCT(FrSummary *)", "Summary data"),
}

func init() {
	k := Register(&Kind{
		Class:   ClassFrameH,
		Name:    "FrameH",
		Comment: "Frame Header Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*FrameH)
			c.Gen = g
			return &c
		},
	})

	// Generations 3-5 carry the local time offset; generation 3 has no
	// event lists.
	early := func(g Generation) *Codec {
		refs := frameHRefs
		if g == Gen3 {
			refs = slices.Concat(frameHRefs[:5], frameHRefs[7:])
		}
		return &Codec{
			Description: fields(append([]Element{
				el("name", "STRING", "Name of project or other experiment description"),
				el("run", "INT_4S", "Run number"),
				el("frame", "INT_4U", "Frame number, monotonically increasing"),
				el("GTimeS", "INT_4U", "Frame start time in GPS seconds"),
				el("GTimeN", "INT_4U", "Frame start time residual, integer nanoseconds"),
				el("ULeapS", "INT_2U", "Number of leap seconds since GPS epoch"),
				el("localTime", "INT_4S", "Local seasonal time offset from UTC in seconds"),
				el("dt", "REAL_8", "Frame length in seconds"),
			}, refs...)...),
			Bytes: func(r Record, ctx Context) int64 {
				x := r.(*FrameH)
				return format.StringBytes(x.Name) + 2*format.Int4Bytes + GPSTimeBytes +
					format.Int2Bytes + format.Int4Bytes + format.Real8Bytes + frameHPtrs(ctx.Gen)
			},
			Encode: func(e *format.Encoder, r Record, ctx Context) {
				x := r.(*FrameH)
				e.PutString(x.Name)
				e.PutI32(x.Run)
				e.PutU32(x.Frame)
				putTime(e, x.GTime)
				e.PutU16(x.ULeapS)
				e.PutI32(x.LocalTime)
				e.PutF64(x.Dt)
				putFrameHPtrs(e, x, ctx.Gen)
			},
			Decode: func(d *format.Decoder, ctx Context) Record {
				x := &FrameH{Gen: ctx.Gen}
				x.Name = d.ReadString()
				x.Run = d.I32()
				x.Frame = d.U32()
				x.GTime = readTime(d)
				x.ULeapS = d.U16()
				x.LocalTime = d.I32()
				x.Dt = d.F64()
				readFrameHPtrs(d, x, ctx.Gen)
				return x
			},
		}
	}

	gen3 := early(Gen3)
	gen4 := early(Gen4)
	gen4.Promote = func(prev Record, ctx Context) (Record, error) {
		c := *prev.(*FrameH)
		c.Gen = ctx.Gen
		c.Event, c.SimEvent = Ptr{}, Ptr{}
		return &c, nil
	}
	gen4.Demote = func(r Record, ctx Context) (Record, error) {
		c := *r.(*FrameH)
		c.Gen = ctx.Gen
		c.Event, c.SimEvent = Ptr{}, Ptr{}
		return &c, nil
	}

	gen6 := &Codec{
		Description: fields(append([]Element{
			el("name", "STRING", "Name of project or other experiment description"),
			el("run", "INT_4S", "Run number"),
			el("frame", "INT_4U", "Frame number, monotonically increasing"),
			el("dataQuality", "INT_4U", "Generic data quality word"),
			el("GTimeS", "INT_4U", "Frame start time in GPS seconds"),
			el("GTimeN", "INT_4U", "Frame start time residual, integer nanoseconds"),
			el("ULeapS", "INT_2U", "Number of leap seconds since GPS epoch"),
			el("dt", "REAL_8", "Frame length in seconds"),
		}, frameHRefs...)...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*FrameH)
			return format.StringBytes(x.Name) + 3*format.Int4Bytes + GPSTimeBytes +
				format.Int2Bytes + format.Real8Bytes + frameHPtrs(ctx.Gen)
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*FrameH)
			e.PutString(x.Name)
			e.PutI32(x.Run)
			e.PutU32(x.Frame)
			e.PutU32(x.DataQuality)
			putTime(e, x.GTime)
			e.PutU16(x.ULeapS)
			e.PutF64(x.Dt)
			putFrameHPtrs(e, x, ctx.Gen)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &FrameH{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Run = d.I32()
			x.Frame = d.U32()
			x.DataQuality = d.U32()
			x.GTime = readTime(d)
			x.ULeapS = d.U16()
			x.Dt = d.F64()
			readFrameHPtrs(d, x, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*FrameH)
			c.Gen = ctx.Gen
			c.LocalTime = 0
			c.DataQuality = 0
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*FrameH)
			for _, p := range []struct {
				name string
				ptr  Ptr
			}{
				{"detectProc", c.DetectProc}, {"history", c.History}, {"rawData", c.RawData}, {"procData", c.ProcData},
				{"statData", c.StatData}, {"event", c.Event}, {"simEvent", c.SimEvent}, {"summary", c.Summary},
			} {
				if err := demotePtr(p.ptr, p.name); err != nil {
					return nil, err
				}
			}
			c.Gen = ctx.Gen
			c.DataQuality = 0
			c.LocalTime = 0
			return &c, nil
		},
	}

	k.Define(Gen3, gen3).Define(Gen4, gen4).Define(Gen6, gen6)
}
