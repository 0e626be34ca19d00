package toc

import (
	"errors"
	"io"

	"gwframe/internal/record"
)

// Builder accumulates a TOC from structures in file order.
type Builder struct {
	toc       *TOC
	frame     int
	detectors map[uint32]string // this frame's detectors by instance
	pending   []pendingStat
}

type pendingStat struct {
	stat *record.StatData
	pos  uint64
}

// NewBuilder returns a builder for a generation g file.
func NewBuilder(g record.Generation) *Builder {
	return &Builder{toc: &TOC{Gen: g}, frame: -1, detectors: map[uint32]string{}}
}

// Add records the structure r, which starts at pos and carries instance
// number instance.
func (b *Builder) Add(pos int64, instance uint32, r record.Record) error {
	p := uint64(pos)
	t := b.toc
	switch x := r.(type) {
	case *record.SH:
		for _, s := range t.SH {
			if s.ID == x.ID {
				return nil
			}
		}
		t.SH = append(t.SH, SHEntry{ID: x.ID, Name: x.Name})
	case *record.FrameH:
		b.frame++
		clear(b.detectors)
		b.pending = b.pending[:0]
		t.ULeapS = int16(x.ULeapS)
		t.Frames = append(t.Frames, Frame{
			DataQuality: x.DataQuality,
			GTime:       x.GTime,
			Dt:          x.Dt,
			Run:         x.Run,
			Frame:       x.Frame,
			Position:    p,
		})
		b.setFrames()
	case *record.Detector:
		b.detectors[instance] = x.Name
		if _, ok := t.Detector(x.Name); !ok {
			t.Detectors = append(t.Detectors, DetectorEntry{Name: x.Name, Position: p})
		}
	case *record.StatData:
		b.pending = append(b.pending, pendingStat{stat: x, pos: p})
	case *record.AdcData:
		if b.frame >= 0 {
			t.Adc.QueryADC(x.Name, x.ChannelNumber, x.ChannelGroup, b.frame, p)
		}
	case *record.ProcData:
		if b.frame >= 0 {
			t.Proc.Query(x.Name, b.frame, p)
		}
	case *record.Event:
		t.Triggers.Query(x.Name, x.GTime, x.Amplitude, p)
	case *record.SimEvent:
		t.Events.Query(x.Name, x.GTime, x.Amplitude, p)
	case *record.Summary:
		if b.frame >= 0 {
			t.Channels.Query(x.Name, b.frame, p)
		}
	case *record.EndOfFrame:
		return b.flush()
	}
	return nil
}

// flush resolves the detector names of the frame's static data.
func (b *Builder) flush() error {
	for _, ps := range b.pending {
		var det string
		if ps.stat.Detector.Class == record.ClassDetector {
			det = b.detectors[ps.stat.Detector.Instance]
		}
		if err := b.toc.Stats.Query(ps.stat, det, ps.pos); err != nil {
			return err
		}
	}
	b.pending = b.pending[:0]
	return nil
}

// TOC finishes and returns the table of contents. The builder must not be
// used afterwards.
func (b *Builder) TOC() (*TOC, error) {
	if err := b.flush(); err != nil {
		return nil, err
	}
	b.setFrames()
	return b.toc, nil
}

// setFrames keeps every per-frame position list as long as the frame list.
func (b *Builder) setFrames() {
	n := len(b.toc.Frames)
	b.toc.Adc.SetFrames(n)
	b.toc.Proc.SetFrames(n)
	b.toc.Channels.SetFrames(n)
}

// Entry is one structure seen by a linear scan.
type Entry struct {
	Pos      int64
	Instance uint32
	Record   record.Record
}

// Source yields the structures of a file in order. Next returns io.EOF
// after the last one.
type Source interface {
	Next() (Entry, error)
}

// Scan rebuilds the TOC of a generation g file that does not carry one.
func Scan(g record.Generation, src Source) (*TOC, error) {
	b := NewBuilder(g)
	for {
		e, err := src.Next()
		if errors.Is(err, io.EOF) {
			return b.TOC()
		}
		if err != nil {
			return nil, err
		}
		if _, ok := e.Record.(*TOC); ok {
			continue
		}
		if err := b.Add(e.Pos, e.Instance, e.Record); err != nil {
			return nil, err
		}
	}
}
