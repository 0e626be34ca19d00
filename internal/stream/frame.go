package stream

import (
	"errors"
	"slices"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Frame is one frame with its cross references resolved. Detectors are
// shared: an Adc or Stat points at the same *record.Detector that appears
// in Detectors.
//
// When writing, the PTR_STRUCT fields of the records are ignored and
// rebuilt from the containment below. Raw may be nil; the writer supplies
// an unnamed FrRawData when Adc or Msgs is non-empty.
type Frame struct {
	Header    *record.FrameH
	Detectors []*record.Detector
	History   []*record.History
	Raw       *record.RawData
	Adc       []Adc
	Msgs      []*record.Msg
	Proc      []Proc
	Stats     []Stat
	Triggers  []Trigger
	Events    []Event
	Summaries []Summary
	End       *record.EndOfFrame
}

// Adc is a raw ADC channel with its detector and vectors.
type Adc struct {
	AdcData  *record.AdcData
	Detector *record.Detector
	Data     *record.Vect
	Aux      *record.Vect
}

// Proc is a post-processed channel with its vectors.
type Proc struct {
	ProcData *record.ProcData
	Data     *record.Vect
	Aux      *record.Vect
}

// Trigger is an event found by online analysis with its waveform.
type Trigger struct {
	Event *record.Event
	Data  *record.Vect
}

// Stat is a static data channel with its detector and values.
type Stat struct {
	StatData *record.StatData
	Detector *record.Detector
	Data     *record.Vect
}

// Event is a simulated event with its waveform.
type Event struct {
	SimEvent *record.SimEvent
	Data     *record.Vect
}

// Summary is a summary channel with its statistical moments.
type Summary struct {
	Summary *record.Summary
	Moments *record.Vect
}

// Generation returns the generation of the frame header.
func (f *Frame) Generation() record.Generation {
	if f.Header == nil {
		return 0
	}
	return f.Header.Gen
}

// Records returns every record of the frame in write order, excluding the
// end-of-frame trailer.
func (f *Frame) Records() []record.Record {
	var out []record.Record
	if f.Header != nil {
		out = append(out, f.Header)
	}
	for _, d := range f.detectors() {
		out = append(out, d)
	}
	for _, h := range f.History {
		out = append(out, h)
	}
	if raw := f.raw(); raw != nil {
		out = append(out, raw)
	}
	for _, a := range f.Adc {
		out = append(out, a.AdcData)
	}
	for _, m := range f.Msgs {
		out = append(out, m)
	}
	for _, p := range f.Proc {
		out = append(out, p.ProcData)
	}
	for _, s := range f.Stats {
		out = append(out, s.StatData)
	}
	for _, t := range f.Triggers {
		out = append(out, t.Event)
	}
	for _, e := range f.Events {
		out = append(out, e.SimEvent)
	}
	for _, s := range f.Summaries {
		out = append(out, s.Summary)
	}
	for _, v := range f.vects() {
		out = append(out, v)
	}
	return out
}

// raw returns the FrRawData to write, or nil when the frame has no raw data.
func (f *Frame) raw() *record.RawData {
	if f.Raw != nil {
		return f.Raw
	}
	if len(f.Adc) == 0 && len(f.Msgs) == 0 {
		return nil
	}
	return &record.RawData{Gen: f.Generation()}
}

// detectors returns Detectors followed by any detector referenced only
// from an Adc or a Stat.
func (f *Frame) detectors() []*record.Detector {
	out := f.Detectors
	add := func(d *record.Detector) {
		if d == nil || slices.Contains(out, d) {
			return
		}
		if len(out) == len(f.Detectors) {
			out = append([]*record.Detector(nil), out...)
		}
		out = append(out, d)
	}
	for _, a := range f.Adc {
		add(a.Detector)
	}
	for _, s := range f.Stats {
		add(s.Detector)
	}
	return out
}

// vects returns the vectors owned by the frame in instance order.
func (f *Frame) vects() []*record.Vect {
	var out []*record.Vect
	add := func(vs ...*record.Vect) {
		for _, v := range vs {
			if v != nil {
				out = append(out, v)
			}
		}
	}
	for _, a := range f.Adc {
		add(a.Data, a.Aux)
	}
	for _, p := range f.Proc {
		add(p.Data, p.Aux)
	}
	for _, s := range f.Stats {
		add(s.Data)
	}
	for _, t := range f.Triggers {
		add(t.Data)
	}
	for _, e := range f.Events {
		add(e.Data)
	}
	for _, s := range f.Summaries {
		add(s.Moments)
	}
	return out
}

// assemble resolves the PTR_STRUCT references of one frame read from a
// stream. objs holds the frame's structures keyed by class and instance.
func assemble(head *record.FrameH, objs map[record.Ptr]record.Record, end *record.EndOfFrame) (*Frame, error) {
	f := &Frame{Header: head, End: end}
	var err error
	if f.Detectors, err = chain(objs, head.DetectProc, func(x *record.Detector) record.Ptr { return x.Next }); err != nil {
		return nil, err
	}
	if f.History, err = chain(objs, head.History, func(x *record.History) record.Ptr { return x.Next }); err != nil {
		return nil, err
	}

	dets := make(map[record.Ptr]*record.Detector, len(f.Detectors))
	p := head.DetectProc
	for _, d := range f.Detectors {
		dets[p] = d
		p = d.Next
	}
	detector := func(p record.Ptr) (*record.Detector, error) {
		if p.IsNull() {
			return nil, nil
		}
		if d, ok := dets[p]; ok {
			return d, nil
		}
		d, err := lookup[*record.Detector](objs, p)
		if err != nil {
			return nil, err
		}
		dets[p] = d
		return d, nil
	}

	if f.Raw, err = optional[*record.RawData](objs, head.RawData); err != nil {
		return nil, err
	}
	if f.Raw != nil {
		adcs, err := chain(objs, f.Raw.FirstAdc, func(x *record.AdcData) record.Ptr { return x.Next })
		if err != nil {
			return nil, err
		}
		for _, x := range adcs {
			a := Adc{AdcData: x}
			if a.Detector, err = detector(x.Detector); err != nil {
				return nil, err
			}
			if a.Data, err = optional[*record.Vect](objs, x.Data); err != nil {
				return nil, err
			}
			if a.Aux, err = optional[*record.Vect](objs, x.Aux); err != nil {
				return nil, err
			}
			f.Adc = append(f.Adc, a)
		}
		if f.Msgs, err = chain(objs, f.Raw.LogMsg, func(x *record.Msg) record.Ptr { return x.Next }); err != nil {
			return nil, err
		}
	}

	procs, err := chain(objs, head.ProcData, func(x *record.ProcData) record.Ptr { return x.Next })
	if err != nil {
		return nil, err
	}
	for _, x := range procs {
		pr := Proc{ProcData: x}
		if pr.Data, err = optional[*record.Vect](objs, x.Data); err != nil {
			return nil, err
		}
		if pr.Aux, err = optional[*record.Vect](objs, x.Aux); err != nil {
			return nil, err
		}
		f.Proc = append(f.Proc, pr)
	}

	stats, err := chain(objs, head.StatData, func(x *record.StatData) record.Ptr { return x.Next })
	if err != nil {
		return nil, err
	}
	for _, s := range stats {
		st := Stat{StatData: s}
		if st.Detector, err = detector(s.Detector); err != nil {
			return nil, err
		}
		if st.Data, err = optional[*record.Vect](objs, s.Data); err != nil {
			return nil, err
		}
		f.Stats = append(f.Stats, st)
	}

	trigs, err := chain(objs, head.Event, func(x *record.Event) record.Ptr { return x.Next })
	if err != nil {
		return nil, err
	}
	for _, x := range trigs {
		tr := Trigger{Event: x}
		if tr.Data, err = optional[*record.Vect](objs, x.Data); err != nil {
			return nil, err
		}
		f.Triggers = append(f.Triggers, tr)
	}

	events, err := chain(objs, head.SimEvent, func(x *record.SimEvent) record.Ptr { return x.Next })
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		ev := Event{SimEvent: e}
		if ev.Data, err = optional[*record.Vect](objs, e.Data); err != nil {
			return nil, err
		}
		f.Events = append(f.Events, ev)
	}

	sums, err := chain(objs, head.Summary, func(x *record.Summary) record.Ptr { return x.Next })
	if err != nil {
		return nil, err
	}
	for _, s := range sums {
		sm := Summary{Summary: s}
		if sm.Moments, err = optional[*record.Vect](objs, s.Moments); err != nil {
			return nil, err
		}
		f.Summaries = append(f.Summaries, sm)
	}
	return f, nil
}

func lookup[T record.Record](objs map[record.Ptr]record.Record, p record.Ptr) (T, error) {
	var zero T
	r, ok := objs[p]
	if !ok {
		return zero, &format.Error{Kind: format.ErrFormat, Offset: -1, Class: uint16(p.Class),
			Struct: p.Class.String(), Actual: p.String(), Err: errors.New("dangling pointer")}
	}
	x, ok := r.(T)
	if !ok {
		return zero, &format.Error{Kind: format.ErrFormat, Offset: -1, Class: uint16(p.Class),
			Struct: p.Class.String(), Actual: p.String(), Err: errors.New("pointer to unexpected structure")}
	}
	return x, nil
}

func optional[T record.Record](objs map[record.Ptr]record.Record, p record.Ptr) (T, error) {
	if p.IsNull() {
		var zero T
		return zero, nil
	}
	return lookup[T](objs, p)
}

// chain follows a linked list starting at head.
func chain[T record.Record](objs map[record.Ptr]record.Record, head record.Ptr, next func(T) record.Ptr) ([]T, error) {
	var out []T
	seen := map[record.Ptr]bool{}
	for p := head; !p.IsNull(); {
		if seen[p] {
			return nil, &format.Error{Kind: format.ErrFormat, Offset: -1, Class: uint16(p.Class),
				Struct: p.Class.String(), Actual: p.String(), Err: errors.New("pointer cycle")}
		}
		seen[p] = true
		x, err := lookup[T](objs, p)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		p = next(x)
	}
	return out, nil
}
