package record

import "gwframe/internal/format"

// Summary is an FrSummary structure: statistical summary of a channel
// produced by a named test. Moments references the FrVect of statistical
// moments. GTime exists from generation 4.
type Summary struct {
	Gen     Generation
	Name    string
	Comment string
	Test    string
	GTime   GPSTime
	Moments Ptr
	Next    Ptr
}

func (r *Summary) Class() ClassID         { return ClassSummary }
func (r *Summary) Generation() Generation { return r.Gen }

func (r *Summary) Equal(o Record) bool {
	x, ok := o.(*Summary)
	return ok && *r == *x
}

func init() {
	k := Register(&Kind{
		Class:   ClassSummary,
		Name:    "FrSummary",
		Comment: "Summary Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*Summary)
			c.Gen = g
			return &c
		},
	})

	gen3 := &Codec{
		Description: fields(
			el("name", "STRING", "Name of summary statistic"),
			el("comment", "STRING", "Comment"),
			el("test", "STRING", "Statistical test used"),
			el("moments", "PTR_STRUCT(FrVect *)", "Statistical moments"),
			el("next", "PTR_STRUCT(FrSummary *)", "Next summary structure"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Summary)
			return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + format.StringBytes(x.Test) +
				2*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Summary)
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutString(x.Test)
			putPtr(e, ctx.Gen, x.Moments)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Summary{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.Test = d.ReadString()
			x.Moments = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen4 := &Codec{
		Description: fields(
			el("name", "STRING", "Name of summary statistic"),
			el("comment", "STRING", "Comment"),
			el("test", "STRING", "Statistical test used"),
			el("GTimeS", "INT_4U", "GPS time of the summary, seconds"),
			el("GTimeN", "INT_4U", "GPS time of the summary, nanoseconds"),
			el("moments", "PTR_STRUCT(FrVect *)", "Statistical moments"),
			el("next", "PTR_STRUCT(FrSummary *)", "Next summary structure"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Summary)
			return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + format.StringBytes(x.Test) +
				GPSTimeBytes + 2*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Summary)
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutString(x.Test)
			putTime(e, x.GTime)
			putPtr(e, ctx.Gen, x.Moments)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Summary{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.Test = d.ReadString()
			x.GTime = readTime(d)
			x.Moments = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*Summary)
			c.Gen = ctx.Gen
			if ctx.Frame != nil {
				c.GTime = ctx.Frame.GTime
			}
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*Summary)
			c.Gen = ctx.Gen
			c.GTime = GPSTime{}
			return &c, nil
		},
	}

	k.Define(Gen3, gen3).Define(Gen4, gen4).Define(Gen6, widened(gen4, k, func(r Record) []Ptr {
		x := r.(*Summary)
		return []Ptr{x.Moments, x.Next}
	}))
}
