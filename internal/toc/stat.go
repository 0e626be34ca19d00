package toc

import (
	"slices"
	"strings"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

// StatInstance is one occurrence of a static data structure.
type StatInstance struct {
	TimeStart uint32
	TimeEnd   uint32
	Version   uint32
	Position  uint64
}

// Stat groups the occurrences of one static data name.
type Stat struct {
	Name      string
	Detector  string
	Instances []StatInstance
}

// StatIndex maps static data names to their detector and occurrences,
// ordered by name.
type StatIndex struct {
	entries []Stat
}

func (x *StatIndex) find(name string) (int, bool) {
	return slices.BinarySearchFunc(x.entries, name, func(s Stat, n string) int { return strings.Compare(s.Name, n) })
}

// Query records an occurrence of stat at pos. A name already bound to a
// different detector is rejected.
func (x *StatIndex) Query(stat *record.StatData, detector string, pos uint64) error {
	inst := StatInstance{TimeStart: stat.TimeStart, TimeEnd: stat.TimeEnd, Version: stat.Version, Position: pos}
	i, ok := x.find(stat.Name)
	if !ok {
		x.entries = slices.Insert(x.entries, i, Stat{Name: stat.Name, Detector: detector, Instances: []StatInstance{inst}})
		return nil
	}
	e := &x.entries[i]
	if e.Detector != "" && e.Detector != detector {
		return format.Errorf(format.ErrFormat, "static data %q is associated with detector %q and detector %q",
			stat.Name, e.Detector, detector)
	}
	e.Detector = detector
	e.Instances = append(e.Instances, inst)
	return nil
}

// Get returns a copy of the entry for name.
func (x *StatIndex) Get(name string) (Stat, bool) {
	i, ok := x.find(name)
	if !ok {
		return Stat{}, false
	}
	return x.entries[i].clone(), true
}

// GetAt returns a copy of the i'th entry in name order.
func (x *StatIndex) GetAt(i int) (Stat, bool) {
	if i < 0 || i >= len(x.entries) {
		return Stat{}, false
	}
	return x.entries[i].clone(), true
}

func (s Stat) clone() Stat {
	s.Instances = slices.Clone(s.Instances)
	return s
}

// Len returns the number of distinct names.
func (x *StatIndex) Len() int { return len(x.entries) }

// Names returns the indexed names in order.
func (x *StatIndex) Names() []string {
	out := make([]string, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.Name
	}
	return out
}

// Stat returns a map view of the index.
func (x *StatIndex) Stat() map[string]Stat {
	m := make(map[string]Stat, len(x.entries))
	for _, e := range x.entries {
		m[e.Name] = e.clone()
	}
	return m
}

func (x *StatIndex) total() int {
	n := 0
	for _, e := range x.entries {
		n += len(e.Instances)
	}
	return n
}

const statInstanceBytes = 3*format.Int4Bytes + format.Int8Bytes

// Bytes returns the encoded size of the index.
func (x *StatIndex) Bytes() int64 {
	n := int64(2 * format.Int4Bytes)
	for _, e := range x.entries {
		n += format.StringBytes(e.Name) + format.StringBytes(e.Detector) + format.Int4Bytes
	}
	return n + int64(x.total())*statInstanceBytes
}

func (x *StatIndex) encode(e *format.Encoder) {
	e.PutU32(uint32(len(x.entries)))
	for _, s := range x.entries {
		e.PutString(s.Name)
	}
	for _, s := range x.entries {
		e.PutString(s.Detector)
	}
	for _, s := range x.entries {
		e.PutU32(uint32(len(s.Instances)))
	}
	e.PutU32(uint32(x.total()))
	for _, s := range x.entries {
		for _, in := range s.Instances {
			e.PutU32(in.TimeStart)
		}
	}
	for _, s := range x.entries {
		for _, in := range s.Instances {
			e.PutU32(in.TimeEnd)
		}
	}
	for _, s := range x.entries {
		for _, in := range s.Instances {
			e.PutU32(in.Version)
		}
	}
	for _, s := range x.entries {
		for _, in := range s.Instances {
			e.PutU64(in.Position)
		}
	}
}

func (x *StatIndex) decode(d *format.Decoder) {
	n := d.Count(2*format.Int2Bytes + format.Int4Bytes)
	if n == 0 {
		d.Count(statInstanceBytes)
		return
	}
	names := d.ReadStrings(n)
	dets := d.ReadStrings(n)
	counts := make([]uint32, n)
	for i := range counts {
		counts[i] = d.U32()
	}
	total := d.Count(statInstanceBytes)
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
	insts := make([]StatInstance, total)
	for i := range insts {
		insts[i].TimeStart = d.U32()
	}
	for i := range insts {
		insts[i].TimeEnd = d.U32()
	}
	for i := range insts {
		insts[i].Version = d.U32()
	}
	for i := range insts {
		insts[i].Position = d.U64()
	}
	x.entries = make([]Stat, n)
	off := 0
	for i := range x.entries {
		c := int(counts[i])
		x.entries[i] = Stat{Name: names[i], Detector: dets[i], Instances: insts[off : off+c : off+c]}
		off += c
	}
	slices.SortStableFunc(x.entries, func(a, b Stat) int { return strings.Compare(a.Name, b.Name) })
}

func (x *StatIndex) equal(o *StatIndex) bool {
	return slices.EqualFunc(x.entries, o.entries, func(a, b Stat) bool {
		return a.Name == b.Name && a.Detector == b.Detector && slices.Equal(a.Instances, b.Instances)
	})
}

func (x *StatIndex) clone() StatIndex {
	c := StatIndex{entries: slices.Clone(x.entries)}
	for i := range c.entries {
		c.entries[i].Instances = slices.Clone(c.entries[i].Instances)
	}
	return c
}
