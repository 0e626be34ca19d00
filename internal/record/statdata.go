package record

import "gwframe/internal/format"

// StatData is an FrStatData structure: static (slowly varying) data valid
// over [TimeStart, TimeEnd], with a version number to supersede earlier
// values. Detector references the shared FrDetector the data belongs to;
// Data references the FrVect holding the values.
type StatData struct {
	Gen            Generation
	Name           string
	Comment        string
	Representation string
	TimeStart      uint32
	TimeEnd        uint32
	Version        uint32
	Detector       Ptr
	Data           Ptr
	Next           Ptr
}

func (r *StatData) Class() ClassID         { return ClassStatData }
func (r *StatData) Generation() Generation { return r.Gen }

func (r *StatData) Equal(o Record) bool {
	x, ok := o.(*StatData)
	return ok && *r == *x
}

func init() {
	k := Register(&Kind{
		Class:   ClassStatData,
		Name:    "FrStatData",
		Comment: "Static Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*StatData)
			c.Gen = g
			return &c
		},
	})
	c := &Codec{
		Description: fields(
			el("name", "STRING", "Static data name"),
			el("comment", "STRING", "Comment"),
			el("representation", "STRING", "Type of static data being represented"),
			el("timeStart", "INT_4U", "Start time of static data validity, GPS seconds"),
			el("timeEnd", "INT_4U", "End time of static data validity, GPS seconds"),
			el("version", "INT_4U", "Version number"),
			el("detector", "PTR_STRUCT(FrDetector *)", "Detector owning the static data"),
			el("data", "PTR_STRUCT(FrVect *)", "Static data values"),
			el("next", "PTR_STRUCT(FrStatData *)", "Next static data structure"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*StatData)
			return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + format.StringBytes(x.Representation) +
				3*format.Int4Bytes + 3*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*StatData)
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutString(x.Representation)
			e.PutU32(x.TimeStart)
			e.PutU32(x.TimeEnd)
			e.PutU32(x.Version)
			putPtr(e, ctx.Gen, x.Detector)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &StatData{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.Representation = d.ReadString()
			x.TimeStart = d.U32()
			x.TimeEnd = d.U32()
			x.Version = d.U32()
			x.Detector = readPtr(d, ctx.Gen)
			x.Data = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}
	k.Define(Gen3, c).Define(Gen6, widened(c, k, func(r Record) []Ptr {
		x := r.(*StatData)
		return []Ptr{x.Detector, x.Data, x.Next}
	}))
}
