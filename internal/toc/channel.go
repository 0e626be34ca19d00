package toc

import (
	"slices"
	"strings"

	"gwframe/internal/format"
)

// Channel is the per-frame position list of one channel. A zero position
// means the channel is absent from that frame. ChannelID and GroupID are
// only carried by the ADC index.
type Channel struct {
	Name      string
	ChannelID uint32
	GroupID   uint32
	Positions []uint64
}

// ChannelIndex maps channel names to one position per frame, ordered by
// name. Every position list has exactly Frames entries.
type ChannelIndex struct {
	frames  int
	ids     bool
	entries []Channel
}

func (x *ChannelIndex) find(name string) (int, bool) {
	return slices.BinarySearchFunc(x.entries, name, func(c Channel, n string) int { return strings.Compare(c.Name, n) })
}

// Query records that name appears in frame at pos. The index grows to
// cover frame; channels absent from the new frames get zero positions.
func (x *ChannelIndex) Query(name string, frame int, pos uint64) {
	x.query(name, frame, pos)
}

// QueryADC is Query for an ADC channel, recording its channel and group
// numbers.
func (x *ChannelIndex) QueryADC(name string, channel, group uint32, frame int, pos uint64) {
	x.ids = true
	c := x.query(name, frame, pos)
	c.ChannelID, c.GroupID = channel, group
}

func (x *ChannelIndex) query(name string, frame int, pos uint64) *Channel {
	if x.frames <= frame {
		x.SetFrames(frame + 1)
	}
	i, ok := x.find(name)
	if !ok {
		x.entries = slices.Insert(x.entries, i, Channel{Name: name, Positions: make([]uint64, x.frames)})
	}
	c := &x.entries[i]
	c.Positions[frame] = pos
	return c
}

// SetFrames fixes the number of frames; every position list is padded or
// cut to n entries.
func (x *ChannelIndex) SetFrames(n int) {
	x.frames = n
	for i := range x.entries {
		p := x.entries[i].Positions
		if len(p) < n {
			p = append(p, make([]uint64, n-len(p))...)
		}
		x.entries[i].Positions = p[:n]
	}
}

// Frames returns the length of every position list.
func (x *ChannelIndex) Frames() int { return x.frames }

// Get returns a copy of the per-frame positions of name.
func (x *ChannelIndex) Get(name string) ([]uint64, bool) {
	i, ok := x.find(name)
	if !ok {
		return nil, false
	}
	return slices.Clone(x.entries[i].Positions), true
}

// GetAt returns a copy of the i'th channel in name order.
func (x *ChannelIndex) GetAt(i int) (Channel, bool) {
	if i < 0 || i >= len(x.entries) {
		return Channel{}, false
	}
	c := x.entries[i]
	c.Positions = slices.Clone(c.Positions)
	return c, true
}

func (x *ChannelIndex) Len() int { return len(x.entries) }

// Names returns the indexed names in order.
func (x *ChannelIndex) Names() []string {
	out := make([]string, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.Name
	}
	return out
}

// Bytes returns the encoded size of the index.
func (x *ChannelIndex) Bytes() int64 {
	n := int64(format.Int4Bytes)
	for _, e := range x.entries {
		n += format.StringBytes(e.Name)
	}
	if x.ids {
		n += int64(len(x.entries)) * 2 * format.Int4Bytes
	}
	return n + int64(len(x.entries)*x.frames)*format.Int8Bytes
}

func (x *ChannelIndex) encode(e *format.Encoder) {
	e.PutU32(uint32(len(x.entries)))
	for _, c := range x.entries {
		e.PutString(c.Name)
	}
	if x.ids {
		for _, c := range x.entries {
			e.PutU32(c.ChannelID)
		}
		for _, c := range x.entries {
			e.PutU32(c.GroupID)
		}
	}
	for _, c := range x.entries {
		for f := range x.frames {
			e.PutU64(c.Positions[f])
		}
	}
}

// decode reads the index of a file with the given number of frames.
func (x *ChannelIndex) decode(d *format.Decoder, frames int) {
	x.frames = frames
	n := d.Count(format.Int2Bytes)
	if n == 0 {
		return
	}
	names := d.ReadStrings(n)
	x.entries = make([]Channel, n)
	for i := range x.entries {
		x.entries[i].Name = names[i]
	}
	if x.ids && d.CheckCount(n, 2*format.Int4Bytes) {
		for i := range x.entries {
			x.entries[i].ChannelID = d.U32()
		}
		for i := range x.entries {
			x.entries[i].GroupID = d.U32()
		}
	}
	if !d.CheckCount(n*frames, format.Int8Bytes) {
		x.entries = nil
		return
	}
	for i := range x.entries {
		x.entries[i].Positions = make([]uint64, frames)
		for f := range frames {
			x.entries[i].Positions[f] = d.U64()
		}
	}
	slices.SortStableFunc(x.entries, func(a, b Channel) int { return strings.Compare(a.Name, b.Name) })
}

func (x *ChannelIndex) equal(o *ChannelIndex) bool {
	return x.frames == o.frames && slices.EqualFunc(x.entries, o.entries, func(a, b Channel) bool {
		return a.Name == b.Name && a.ChannelID == b.ChannelID && a.GroupID == b.GroupID && slices.Equal(a.Positions, b.Positions)
	})
}

func (x *ChannelIndex) clone() ChannelIndex {
	c := ChannelIndex{frames: x.frames, ids: x.ids, entries: slices.Clone(x.entries)}
	for i := range c.entries {
		c.entries[i].Positions = slices.Clone(c.entries[i].Positions)
	}
	return c
}
