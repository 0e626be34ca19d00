package record

import "gwframe/internal/format"

// Msg is an FrMsg structure: an operator or alarm message logged with the
// raw data. GTime exists from generation 6; promotion takes it from the
// enclosing frame. Generation 3 has no messages.
type Msg struct {
	Gen      Generation
	Alarm    string
	Message  string
	Severity uint32
	GTime    GPSTime
	Next     Ptr
}

func (r *Msg) Class() ClassID         { return ClassMsg }
func (r *Msg) Generation() Generation { return r.Gen }

func (r *Msg) Equal(o Record) bool {
	x, ok := o.(*Msg)
	return ok && *r == *x
}

func init() {
	k := Register(&Kind{
		Class:   ClassMsg,
		Name:    "FrMsg",
		Comment: "Message Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*Msg)
			c.Gen = g
			return &c
		},
	})

	gen4 := &Codec{
		Description: fields(
			el("alarm", "STRING", "Name of message, error flag or alarm state"),
			el("message", "STRING", "Message body"),
			el("severity", "INT_4U", "Message severity level"),
			el("next", "PTR_STRUCT(FrMsg *)", "Next message"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Msg)
			return format.StringBytes(x.Alarm) + format.StringBytes(x.Message) + format.Int4Bytes + ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Msg)
			e.PutString(x.Alarm)
			e.PutString(x.Message)
			e.PutU32(x.Severity)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Msg{Gen: ctx.Gen}
			x.Alarm = d.ReadString()
			x.Message = d.ReadString()
			x.Severity = d.U32()
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen6 := &Codec{
		Description: fields(
			el("alarm", "STRING", "Name of message, error flag or alarm state"),
			el("message", "STRING", "Message body"),
			el("severity", "INT_4U", "Message severity level"),
			el("GTimeS", "INT_4U", "GPS time of the message, seconds"),
			el("GTimeN", "INT_4U", "GPS time of the message, nanoseconds"),
			el("next", "PTR_STRUCT(FrMsg *)", "Next message"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Msg)
			return format.StringBytes(x.Alarm) + format.StringBytes(x.Message) + format.Int4Bytes +
				GPSTimeBytes + ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Msg)
			e.PutString(x.Alarm)
			e.PutString(x.Message)
			e.PutU32(x.Severity)
			putTime(e, x.GTime)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Msg{Gen: ctx.Gen}
			x.Alarm = d.ReadString()
			x.Message = d.ReadString()
			x.Severity = d.U32()
			x.GTime = readTime(d)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*Msg)
			c.Gen = ctx.Gen
			if ctx.Frame != nil {
				c.GTime = ctx.Frame.GTime
			}
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*Msg)
			if err := demotePtr(c.Next, "next"); err != nil {
				return nil, err
			}
			c.Gen = ctx.Gen
			c.GTime = GPSTime{}
			return &c, nil
		},
	}

	k.Define(Gen4, gen4).Define(Gen6, gen6)
}
