package record

import (
	"math"
	"slices"

	"gwframe/internal/format"
)

// Processed data types, generation 6 onward.
const (
	ProcUnknown    uint16 = 0
	ProcTimeSeries uint16 = 1
	ProcFrequency  uint16 = 2
	ProcMultiDim   uint16 = 3
)

// ProcData is an FrProcData structure: a post-processed channel. Before
// generation 6 it is a time series described by SampleRate and a split time
// offset; generation 6 replaces both with a typed header, a fractional
// TimeOffset and auxiliary parameters.
type ProcData struct {
	Gen         Generation
	Name        string
	Comment     string
	SampleRate  float64
	TimeOffsetS uint32
	TimeOffsetN uint32
	Type        uint16
	SubType     uint16
	TimeOffset  float64
	TRange      float64
	FShift      float64
	Phase       float32
	FRange      float64
	BW          float64
	AuxParams   []Param

	Data Ptr
	Aux  Ptr
	Next Ptr
}

func (r *ProcData) Class() ClassID         { return ClassProcData }
func (r *ProcData) Generation() Generation { return r.Gen }

func (r *ProcData) Equal(o Record) bool {
	x, ok := o.(*ProcData)
	if !ok {
		return false
	}
	a, b := *r, *x
	a.AuxParams, b.AuxParams = nil, nil
	return a == b && slices.Equal(r.AuxParams, x.AuxParams)
}

func (r *ProcData) clone(g Generation) *ProcData {
	c := *r
	c.Gen = g
	c.AuxParams = slices.Clone(r.AuxParams)
	return &c
}

var procTail = []Element{
	el("data", "PTR_STRUCT(FrVect *)", "Processed samples"),
	el("aux", "PTR_STRUCT(FrVect *)", "Auxiliary data"),
	el("next", "PTR_STRUCT(FrProcData *)", "Next processed channel"),
}

func init() {
	k := Register(&Kind{
		Class:   ClassProcData,
		Name:    "FrProcData",
		Comment: "Post-processed Data Structure",
		Retag: func(r Record, g Generation) Record {
			return r.(*ProcData).clone(g)
		},
	})

	gen3 := &Codec{
		Description: fields(append([]Element{
			el("name", "STRING", "Channel name"),
			el("comment", "STRING", "Comment"),
			el("sampleRate", "REAL_8", "Sample rate, samples per second"),
			el("timeOffsetS", "INT_4U", "Offset of the first sample from frame start, seconds"),
			el("timeOffsetN", "INT_4U", "Offset residual, nanoseconds"),
			el("fShift", "REAL_8", "Frequency shift of heterodyned data"),
		}, procTail...)...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*ProcData)
			return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + 2*format.Real8Bytes +
				2*format.Int4Bytes + 3*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*ProcData)
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutF64(x.SampleRate)
			e.PutU32(x.TimeOffsetS)
			e.PutU32(x.TimeOffsetN)
			e.PutF64(x.FShift)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Aux)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &ProcData{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.SampleRate = d.F64()
			x.TimeOffsetS = d.U32()
			x.TimeOffsetN = d.U32()
			x.FShift = d.F64()
			x.Data = readPtr(d, ctx.Gen)
			x.Aux = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen6 := &Codec{
		Description: fields(append([]Element{
			el("name", "STRING", "Channel name"),
			el("comment", "STRING", "Comment"),
			el("type", "INT_2U", "Type of data object"),
			el("subType", "INT_2U", "Subtype for frequency series"),
			el("timeOffset", "REAL_8", "Offset of the first sample from frame start, seconds"),
			el("tRange", "REAL_8", "Duration of sampled data, seconds"),
			el("fShift", "REAL_8", "Frequency shift of heterodyned data"),
			el("phase", "REAL_4", "Phase of the heterodyne signal at the first sample, radians"),
			el("fRange", "REAL_8", "Frequency range"),
			el("BW", "REAL_8", "Resolution bandwidth"),
			el("nAuxParam", "INT_2U", "Number of auxiliary parameters"),
			el("auxParam", "REAL_8[nAuxParam]", "Auxiliary parameter values"),
			el("auxParamNames", "STRING[nAuxParam]", "Auxiliary parameter names"),
		}, procTail...)...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*ProcData)
			n := format.StringBytes(x.Name) + format.StringBytes(x.Comment) + 2*format.Int2Bytes +
				5*format.Real8Bytes + format.Real4Bytes + format.Int2Bytes + 3*ctx.Gen.PtrBytes()
			for _, p := range x.AuxParams {
				n += format.Real8Bytes + format.StringBytes(p.Name)
			}
			return n
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*ProcData)
			if len(x.AuxParams) > math.MaxUint16 {
				e.Fail(format.Mismatch(format.ErrOutOfBounds, -1, math.MaxUint16, len(x.AuxParams)))
			}
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutU16(x.Type)
			e.PutU16(x.SubType)
			e.PutF64(x.TimeOffset)
			e.PutF64(x.TRange)
			e.PutF64(x.FShift)
			e.PutF32(x.Phase)
			e.PutF64(x.FRange)
			e.PutF64(x.BW)
			e.PutU16(uint16(len(x.AuxParams)))
			for _, p := range x.AuxParams {
				e.PutF64(p.Value)
			}
			for _, p := range x.AuxParams {
				e.PutString(p.Name)
			}
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Aux)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &ProcData{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.Type = d.U16()
			x.SubType = d.U16()
			x.TimeOffset = d.F64()
			x.TRange = d.F64()
			x.FShift = d.F64()
			x.Phase = d.F32()
			x.FRange = d.F64()
			x.BW = d.F64()
			n := int(d.U16())
			if n > 0 && d.CheckCount(n, format.Real8Bytes) {
				x.AuxParams = make([]Param, n)
				for i := range x.AuxParams {
					x.AuxParams[i].Value = d.F64()
				}
				for i := range x.AuxParams {
					x.AuxParams[i].Name = d.ReadString()
				}
			}
			x.Data = readPtr(d, ctx.Gen)
			x.Aux = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := prev.(*ProcData).clone(ctx.Gen)
			c.Type = ProcTimeSeries
			c.TimeOffset = float64(c.TimeOffsetS) + float64(c.TimeOffsetN)*1e-9
			c.TimeOffsetS, c.TimeOffsetN = 0, 0
			c.SampleRate = 0
			return c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*ProcData)
			for _, p := range []Ptr{x.Data, x.Aux, x.Next} {
				if err := demotePtr(p, "procData"); err != nil {
					return nil, err
				}
			}
			s, n := splitOffset(x.TimeOffset)
			if s < 0 || s > math.MaxUint32 {
				return nil, format.Errorf(format.ErrUnsupportedMigration, "proc %q: time offset %g has no INT_4U form", x.Name, x.TimeOffset)
			}
			return &ProcData{
				Gen: ctx.Gen, Name: x.Name, Comment: x.Comment,
				TimeOffsetS: uint32(s), TimeOffsetN: n, FShift: x.FShift,
				Data: x.Data, Aux: x.Aux, Next: x.Next,
			}, nil
		},
	}

	k.Define(Gen3, gen3).Define(Gen6, gen6)
}
