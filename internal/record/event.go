package record

import (
	"fmt"
	"math"
	"slices"

	"gwframe/internal/format"
)

// Event is an FrEvent structure: a trigger or other event found by online
// analysis. Generations 4 and 5 name it FrTrigData and carry no parameters;
// generation 6 adds REAL_4 parameters, widened to REAL_8 in generation 7.
type Event struct {
	Gen         Generation
	Name        string
	Comment     string
	Inputs      string
	GTime       GPSTime
	TimeBefore  float32
	TimeAfter   float32
	Status      uint32
	Amplitude   float32
	Probability float32
	Statistics  string
	Params      []Param
	Data        Ptr
	Next        Ptr
}

func (r *Event) Class() ClassID         { return ClassEvent }
func (r *Event) Generation() Generation { return r.Gen }

func (r *Event) Equal(o Record) bool {
	x, ok := o.(*Event)
	if !ok {
		return false
	}
	a, b := *r, *x
	a.Params, b.Params = nil, nil
	return a == b && slices.Equal(r.Params, x.Params)
}

func (r *Event) clone(g Generation) *Event {
	c := *r
	c.Gen = g
	c.Params = slices.Clone(r.Params)
	return &c
}

// eventLayout selects the parameter encoding: none, REAL_4 or REAL_8.
type eventLayout int

func (l eventLayout) codec() *Codec {
	elems := []Element{
		el("name", "STRING", "Name of event"),
		el("comment", "STRING", "Description of event"),
		el("inputs", "STRING", "Input channels"),
		el("GTimeS", "INT_4U", "GPS time of the event reference, seconds"),
		el("GTimeN", "INT_4U", "GPS time of the event reference, nanoseconds"),
		el("timeBefore", "REAL_4", "Signal duration before GTime, seconds"),
		el("timeAfter", "REAL_4", "Signal duration after GTime, seconds"),
		el("eventStatus", "INT_4U", "Defined by the event search"),
		el("amplitude", "REAL_4", "Continuous output amplitude"),
		el("probability", "REAL_4", "Likelihood estimate of the event"),
		el("statistics", "STRING", "Statistical description of the event"),
	}
	if l > 0 {
		elems = append(elems,
			el("nParam", "INT_2U", "Number of additional event parameters"),
			el("parameters", fmt.Sprintf("REAL_%d[nParam]", l), "Additional event parameters"),
			el("parameterNames", "STRING[nParam]", "Parameter names"),
		)
	}
	elems = append(elems,
		el("data", "PTR_STRUCT(FrVect *)", "Event waveform"),
		el("next", "PTR_STRUCT(FrEvent *)", "Next event"),
	)

	return &Codec{
		Description: fields(elems...),
		Bytes: func(r Record, ctx Context) int64 {
			x := r.(*Event)
			n := format.StringBytes(x.Name) + format.StringBytes(x.Comment) + format.StringBytes(x.Inputs) +
				GPSTimeBytes + 2*format.Real4Bytes + format.Int4Bytes + 2*format.Real4Bytes +
				format.StringBytes(x.Statistics) + 2*ctx.Gen.PtrBytes()
			if l > 0 {
				n += format.Int2Bytes
				for _, p := range x.Params {
					n += int64(l) + format.StringBytes(p.Name)
				}
			}
			return n
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Event)
			e.PutString(x.Name)
			e.PutString(x.Comment)
			e.PutString(x.Inputs)
			putTime(e, x.GTime)
			e.PutF32(x.TimeBefore)
			e.PutF32(x.TimeAfter)
			e.PutU32(x.Status)
			e.PutF32(x.Amplitude)
			e.PutF32(x.Probability)
			e.PutString(x.Statistics)
			if l > 0 {
				if len(x.Params) > math.MaxUint16 {
					e.Fail(format.Mismatch(format.ErrOutOfBounds, -1, math.MaxUint16, len(x.Params)))
				}
				e.PutU16(uint16(len(x.Params)))
				for _, p := range x.Params {
					if l == format.Real4Bytes {
						e.PutF32(float32(p.Value))
					} else {
						e.PutF64(p.Value)
					}
				}
				for _, p := range x.Params {
					e.PutString(p.Name)
				}
			}
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Event{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Comment = d.ReadString()
			x.Inputs = d.ReadString()
			x.GTime = readTime(d)
			x.TimeBefore = d.F32()
			x.TimeAfter = d.F32()
			x.Status = d.U32()
			x.Amplitude = d.F32()
			x.Probability = d.F32()
			x.Statistics = d.ReadString()
			if l > 0 {
				n := int(d.U16())
				if n > 0 && d.CheckCount(n, int(l)) {
					x.Params = make([]Param, n)
					for i := range x.Params {
						if l == format.Real4Bytes {
							x.Params[i].Value = float64(d.F32())
						} else {
							x.Params[i].Value = d.F64()
						}
					}
					for i := range x.Params {
						x.Params[i].Name = d.ReadString()
					}
				}
			}
			x.Data = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}
}

func init() {
	k := Register(&Kind{
		Class:   ClassEvent,
		Name:    "FrEvent",
		Comment: "Event Data Structure",
		Retag: func(r Record, g Generation) Record {
			return r.(*Event).clone(g)
		},
	})

	gen4 := eventLayout(0).codec()

	gen6 := eventLayout(format.Real4Bytes).codec()
	gen6.Promote = func(prev Record, ctx Context) (Record, error) {
		c := prev.(*Event).clone(ctx.Gen)
		c.Params = nil
		return c, nil
	}
	gen6.Demote = func(r Record, ctx Context) (Record, error) {
		x := r.(*Event)
		for _, p := range []Ptr{x.Data, x.Next} {
			if err := demotePtr(p, "event"); err != nil {
				return nil, err
			}
		}
		c := x.clone(ctx.Gen)
		c.Params = nil
		return c, nil
	}

	gen7 := eventLayout(format.Real8Bytes).codec()
	gen7.Promote = func(prev Record, ctx Context) (Record, error) {
		return prev.(*Event).clone(ctx.Gen), nil
	}
	gen7.Demote = func(r Record, ctx Context) (Record, error) {
		c := r.(*Event).clone(ctx.Gen)
		for i := range c.Params {
			c.Params[i].Value = float64(float32(c.Params[i].Value))
		}
		return c, nil
	}

	k.Define(Gen4, gen4).Define(Gen6, gen6).Define(Gen7, gen7)
}
