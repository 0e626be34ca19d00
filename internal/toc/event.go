package toc

import (
	"slices"
	"strings"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Event is one occurrence of a simulated or detected event.
type Event struct {
	GTime     record.GPSTime
	Amplitude float32
	Position  uint64
}

// EventType groups the occurrences of one event name.
type EventType struct {
	Name   string
	Events []Event
}

// EventIndex maps event names to their occurrences, ordered by name. The
// TOC keeps one for FrSimEvent and one for FrEvent.
type EventIndex struct {
	entries []EventType
}

func (x *EventIndex) find(name string) (int, bool) {
	return slices.BinarySearchFunc(x.entries, name, func(e EventType, n string) int { return strings.Compare(e.Name, n) })
}

// Query records an occurrence of the event name at pos.
func (x *EventIndex) Query(name string, gtime record.GPSTime, amplitude float32, pos uint64) {
	o := Event{GTime: gtime, Amplitude: amplitude, Position: pos}
	i, ok := x.find(name)
	if !ok {
		x.entries = slices.Insert(x.entries, i, EventType{Name: name, Events: []Event{o}})
		return
	}
	x.entries[i].Events = append(x.entries[i].Events, o)
}

// Get returns a copy of the occurrences of name.
func (x *EventIndex) Get(name string) ([]Event, bool) {
	i, ok := x.find(name)
	if !ok {
		return nil, false
	}
	return slices.Clone(x.entries[i].Events), true
}

// GetAt returns a copy of the i'th entry in name order.
func (x *EventIndex) GetAt(i int) (EventType, bool) {
	if i < 0 || i >= len(x.entries) {
		return EventType{}, false
	}
	e := x.entries[i]
	e.Events = slices.Clone(e.Events)
	return e, true
}

func (x *EventIndex) Len() int { return len(x.entries) }

// Names returns the indexed names in order.
func (x *EventIndex) Names() []string {
	out := make([]string, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.Name
	}
	return out
}

func (x *EventIndex) total() int {
	n := 0
	for _, e := range x.entries {
		n += len(e.Events)
	}
	return n
}

const eventBytes = record.GPSTimeBytes + format.Real4Bytes + format.Int8Bytes

// Bytes returns the encoded size of the index.
func (x *EventIndex) Bytes() int64 {
	n := int64(2 * format.Int4Bytes)
	for _, e := range x.entries {
		n += format.StringBytes(e.Name) + format.Int4Bytes
	}
	return n + int64(x.total())*eventBytes
}

func (x *EventIndex) encode(e *format.Encoder) {
	e.PutU32(uint32(len(x.entries)))
	for _, t := range x.entries {
		e.PutString(t.Name)
	}
	for _, t := range x.entries {
		e.PutU32(uint32(len(t.Events)))
	}
	e.PutU32(uint32(x.total()))
	for _, t := range x.entries {
		for _, ev := range t.Events {
			e.PutU32(ev.GTime.Sec)
		}
	}
	for _, t := range x.entries {
		for _, ev := range t.Events {
			e.PutU32(ev.GTime.Nano)
		}
	}
	for _, t := range x.entries {
		for _, ev := range t.Events {
			e.PutF32(ev.Amplitude)
		}
	}
	for _, t := range x.entries {
		for _, ev := range t.Events {
			e.PutU64(ev.Position)
		}
	}
}

func (x *EventIndex) decode(d *format.Decoder) {
	n := d.Count(format.Int2Bytes + format.Int4Bytes)
	if n == 0 {
		d.Count(eventBytes)
		return
	}
	names := d.ReadStrings(n)
	counts := make([]uint32, n)
	for i := range counts {
		counts[i] = d.U32()
	}
	total := d.Count(eventBytes)
	if d.Err() != nil {
		return
	}
	sum := 0
	for _, c := range counts {
		sum += int(c)
	}
	if sum != total {
		d.Fail(format.Mismatch(format.ErrFormat, d.Offset(), total, sum))
		return
	}
	evs := make([]Event, total)
	for i := range evs {
		evs[i].GTime.Sec = d.U32()
	}
	for i := range evs {
		evs[i].GTime.Nano = d.U32()
	}
	for i := range evs {
		evs[i].Amplitude = d.F32()
	}
	for i := range evs {
		evs[i].Position = d.U64()
	}
	x.entries = make([]EventType, n)
	off := 0
	for i := range x.entries {
		c := int(counts[i])
		x.entries[i] = EventType{Name: names[i], Events: evs[off : off+c : off+c]}
		off += c
	}
	slices.SortStableFunc(x.entries, func(a, b EventType) int { return strings.Compare(a.Name, b.Name) })
}

func (x *EventIndex) equal(o *EventIndex) bool {
	return slices.EqualFunc(x.entries, o.entries, func(a, b EventType) bool {
		return a.Name == b.Name && slices.Equal(a.Events, b.Events)
	})
}

func (x *EventIndex) clone() EventIndex {
	c := EventIndex{entries: slices.Clone(x.entries)}
	for i := range c.entries {
		c.entries[i].Events = slices.Clone(c.entries[i].Events)
	}
	return c
}
