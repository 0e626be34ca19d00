package record

import (
	"slices"

	"gwframe/internal/format"
)

// Param is a named simulation parameter.
type Param struct {
	Name  string
	Value float64
}

// SimEvent is an FrSimEvent structure describing a simulated event
// injected into the data. Params exist from generation 6; generation 3
// has no simulated events.
type SimEvent struct {
	Gen        Generation
	Name       string
	Comment    string
	Inputs     string
	GTime      GPSTime
	TimeBefore float32
	TimeAfter  float32
	Amplitude  float32
	Params     []Param
	Data       Ptr
	Next       Ptr
}

func (r *SimEvent) Class() ClassID         { return ClassSimEvent }
func (r *SimEvent) Generation() Generation { return r.Gen }

func (r *SimEvent) Equal(o Record) bool {
	x, ok := o.(*SimEvent)
	if !ok {
		return false
	}
	a, b := *r, *x
	a.Params, b.Params = nil, nil
	return a == b && slices.Equal(r.Params, x.Params)
}

func (r *SimEvent) clone(g Generation) *SimEvent {
	c := *r
	c.Gen = g
	c.Params = slices.Clone(r.Params)
	return &c
}

func simEventFixed(x *SimEvent) int64 {
	return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + format.StringBytes(x.Inputs) +
		GPSTimeBytes + 3*format.Real4Bytes
}

func putSimEventFixed(e *format.Encoder, x *SimEvent) {
	e.PutString(x.Name)
	e.PutString(x.Comment)
	e.PutString(x.Inputs)
	putTime(e, x.GTime)
	e.PutF32(x.TimeBefore)
	e.PutF32(x.TimeAfter)
	e.PutF32(x.Amplitude)
}

func readSimEventFixed(d *format.Decoder, x *SimEvent) {
	x.Name = d.ReadString()
	x.Comment = d.ReadString()
	x.Inputs = d.ReadString()
	x.GTime = readTime(d)
	x.TimeBefore = d.F32()
	x.TimeAfter = d.F32()
	x.Amplitude = d.F32()
}

var simEventHead = []Element{
	el("name", "STRING", "Name of event"),
	el("comment", "STRING", "Description of event"),
	el("inputs", "STRING", "Input channels"),
	el("GTimeS", "INT_4U", "GPS time of the event maximum, seconds"),
	el("GTimeN", "INT_4U", "GPS time of the event maximum, nanoseconds"),
	el("timeBefore", "REAL_4", "Signal duration before GTime, seconds"),
	el("timeAfter", "REAL_4", "Signal duration after GTime, seconds"),
	el("amplitude", "REAL_4", "Continuous output amplitude"),
}

func init() {
	k := Register(&Kind{
		Class:   ClassSimEvent,
		Name:    "FrSimEvent",
		Comment: "Simulated Event Data Structure",
		Retag: func(r Record, g Generation) Record {
			return r.(*SimEvent).clone(g)
		},
	})

	gen4 := &Codec{
		Description: fields(append(slices.Clone(simEventHead),
			el("data", "PTR_STRUCT(FrVect *)", "Simulated waveform"),
			el("next", "PTR_STRUCT(FrSimEvent *)", "Next simulated event"),
		)...),
		Bytes: func(r Record, ctx Context) int64 {
			return simEventFixed(r.(*SimEvent)) + 2*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*SimEvent)
			putSimEventFixed(e, x)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &SimEvent{Gen: ctx.Gen}
			readSimEventFixed(d, x)
			x.Data = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen6 := &Codec{
		Description: fields(append(slices.Clone(simEventHead),
			el("nParam", "INT_2U", "Number of additional event parameters"),
			el("parameters", "*REAL_8", "Array of additional event parameters"),
			el("parameterNames", "*STRING", "Array of parameter names"),
			el("data", "PTR_STRUCT(FrVect *)", "Simulated waveform"),
			el("next", "PTR_STRUCT(FrSimEvent *)", "Next simulated event"),
		)...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*SimEvent)
			n := simEventFixed(x) + format.Int2Bytes + 2*ctx.Gen.PtrBytes()
			for _, p := range x.Params {
				n += format.Real8Bytes + format.StringBytes(p.Name)
			}
			return n
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*SimEvent)
			putSimEventFixed(e, x)
			e.PutU16(uint16(len(x.Params)))
			for _, p := range x.Params {
				e.PutF64(p.Value)
			}
			for _, p := range x.Params {
				e.PutString(p.Name)
			}
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &SimEvent{Gen: ctx.Gen}
			readSimEventFixed(d, x)
			n := int(d.U16())
			if n > 0 && d.CheckCount(n, format.Real8Bytes) {
				x.Params = make([]Param, n)
				for i := range x.Params {
					x.Params[i].Value = d.F64()
				}
				for i := range x.Params {
					x.Params[i].Name = d.ReadString()
				}
			}
			x.Data = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := prev.(*SimEvent).clone(ctx.Gen)
			c.Params = nil
			return c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*SimEvent)
			for _, p := range []Ptr{x.Data, x.Next} {
				if err := demotePtr(p, "simEvent"); err != nil {
					return nil, err
				}
			}
			c := x.clone(ctx.Gen)
			c.Params = nil
			return c, nil
		},
	}

	k.Define(Gen4, gen4).Define(Gen6, gen6)
}
