package record

import "gwframe/internal/format"

// RawData is the FrRawData structure anchoring a frame's raw channel lists.
// FirstTable and LogMsg exist from generation 4. Serial and table channels
// are not modeled; their heads are carried through unchanged.
type RawData struct {
	Gen        Generation
	Name       string
	FirstSer   Ptr
	FirstAdc   Ptr
	FirstTable Ptr
	LogMsg     Ptr
	More       Ptr
}

func (r *RawData) Class() ClassID         { return ClassRawData }
func (r *RawData) Generation() Generation { return r.Gen }

func (r *RawData) Equal(o Record) bool {
	x, ok := o.(*RawData)
	return ok && *r == *x
}

func init() {
	k := Register(&Kind{
		Class:   ClassRawData,
		Name:    "FrRawData",
		Comment: "Raw Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*RawData)
			c.Gen = g
			return &c
		},
	})

	gen3 := &Codec{
		Description: fields(
			el("name", "STRING", "Name of the raw data set"),
			el("firstSer", "PTR_STRUCT(FrSerData *)", "First serial channel"),
			el("firstAdc", "PTR_STRUCT(FrAdcData *)", "First ADC channel"),
			el("more", "PTR_STRUCT(FrVect *)", "Additional user data"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			return format.StringBytes(r.(*RawData).Name) + 3*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*RawData)
			e.PutString(x.Name)
			putPtr(e, ctx.Gen, x.FirstSer)
			putPtr(e, ctx.Gen, x.FirstAdc)
			putPtr(e, ctx.Gen, x.More)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &RawData{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.FirstSer = readPtr(d, ctx.Gen)
			x.FirstAdc = readPtr(d, ctx.Gen)
			x.More = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen4 := &Codec{
		Description: fields(
			el("name", "STRING", "Name of the raw data set"),
			el("firstSer", "PTR_STRUCT(FrSerData *)", "First serial channel"),
			el("firstAdc", "PTR_STRUCT(FrAdcData *)", "First ADC channel"),
			el("firstTable", "PTR_STRUCT(FrTable *)", "First table"),
			el("logMsg", "PTR_STRUCT(FrMsg *)", "First log message"),
			el("more", "PTR_STRUCT(FrVect *)", "Additional user data"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			return format.StringBytes(r.(*RawData).Name) + 5*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*RawData)
			e.PutString(x.Name)
			putPtr(e, ctx.Gen, x.FirstSer)
			putPtr(e, ctx.Gen, x.FirstAdc)
			putPtr(e, ctx.Gen, x.FirstTable)
			putPtr(e, ctx.Gen, x.LogMsg)
			putPtr(e, ctx.Gen, x.More)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &RawData{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.FirstSer = readPtr(d, ctx.Gen)
			x.FirstAdc = readPtr(d, ctx.Gen)
			x.FirstTable = readPtr(d, ctx.Gen)
			x.LogMsg = readPtr(d, ctx.Gen)
			x.More = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*RawData)
			c.Gen = ctx.Gen
			c.FirstTable, c.LogMsg = Ptr{}, Ptr{}
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*RawData)
			c.Gen = ctx.Gen
			c.FirstTable, c.LogMsg = Ptr{}, Ptr{}
			return &c, nil
		},
	}

	k.Define(Gen3, gen3).Define(Gen4, gen4).Define(Gen6, widened(gen4, k, func(r Record) []Ptr {
		x := r.(*RawData)
		return []Ptr{x.FirstSer, x.FirstAdc, x.FirstTable, x.LogMsg, x.More}
	}))
}
