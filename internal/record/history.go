package record

import "gwframe/internal/format"

// History is an FrHistory entry: a time-stamped comment recording what
// produced or modified the frame. Entries form a list through Next.
type History struct {
	Gen     Generation
	Name    string
	Time    uint32 // GPS seconds
	Comment string
	Next    Ptr
}

func (r *History) Class() ClassID         { return ClassHistory }
func (r *History) Generation() Generation { return r.Gen }

func (r *History) Equal(o Record) bool {
	x, ok := o.(*History)
	return ok && *r == *x
}

func init() {
	k := Register(&Kind{
		Class:   ClassHistory,
		Name:    "FrHistory",
		Comment: "History Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*History)
			c.Gen = g
			return &c
		},
	})
	c := &Codec{
		Description: fields(
			el("name", "STRING", "Name of history record"),
			el("time", "INT_4U", "Time of post-processing, GPS time in seconds"),
			el("comment", "STRING", "Program name and relevant comments"),
			el("next", "PTR_STRUCT(FrHistory *)", "Next history structure in the linked list"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*History)
			return format.StringBytes(x.Name) + format.Int4Bytes + format.StringBytes(x.Comment) + ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*History)
			e.PutString(x.Name)
			e.PutU32(x.Time)
			e.PutString(x.Comment)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &History{
				Gen:     ctx.Gen,
				Name:    d.ReadString(),
				Time:    d.U32(),
				Comment: d.ReadString(),
				Next:    readPtr(d, ctx.Gen),
			}
		},
	}
	k.Define(Gen3, c).Define(Gen6, widened(c, k, func(r Record) []Ptr {
		return []Ptr{r.(*History).Next}
	}))
}
