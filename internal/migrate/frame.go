package migrate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gwframe/internal/format"
	"gwframe/internal/logging"
	"gwframe/internal/record"
	"gwframe/internal/stream"
)

// Options configures a Converter.
type Options struct {
	// History appends an FrHistory entry recording the conversion to every
	// converted frame.
	History bool

	// Program names the converter in history entries. Defaults to "gwframe".
	Program string

	// Now returns the conversion time. Defaults to time.Now.
	Now func() time.Time

	// SkipCorrupt drops frames that fail checksum verification instead of
	// aborting a stream conversion.
	SkipCorrupt bool

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Dropped is a record a conversion could not carry to the target.
type Dropped struct {
	Class record.ClassID
	Name  string
	Err   error
}

// FrameReport lists what a frame conversion dropped.
type FrameReport struct {
	Frame   uint32
	Dropped []Dropped
}

// Report summarizes a stream conversion.
type Report struct {
	ID      uuid.UUID
	From    record.Generation
	To      record.Generation
	Frames  int
	Skipped int // frames lost to checksum mismatches
	Dropped map[record.ClassID]int
}

// Converter converts frames to one target generation.
type Converter struct {
	target record.Generation
	opts   Options
	id     uuid.UUID
	logger *slog.Logger
}

// New returns a converter to target. Each converter carries a fresh id
// that is quoted in the history entries it writes.
func New(target record.Generation, opts Options) *Converter {
	if opts.Program == "" {
		opts.Program = "gwframe"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Converter{
		target: target,
		opts:   opts,
		id:     uuid.New(),
		logger: logging.Default(opts.Logger).With("component", "migrate"),
	}
}

// ID returns the conversion id.
func (c *Converter) ID() uuid.UUID { return c.id }

// Target returns the target generation.
func (c *Converter) Target() record.Generation { return c.target }

func nameOf(r record.Record) string {
	switch x := r.(type) {
	case *record.Detector:
		return x.Name
	case *record.History:
		return x.Name
	case *record.RawData:
		return x.Name
	case *record.AdcData:
		return x.Name
	case *record.Msg:
		return x.Alarm
	case *record.ProcData:
		return x.Name
	case *record.StatData:
		return x.Name
	case *record.Event:
		return x.Name
	case *record.SimEvent:
		return x.Name
	case *record.Summary:
		return x.Name
	case *record.Vect:
		return x.Name
	case *record.FrameH:
		return x.Name
	}
	return ""
}

// Frame converts f. Records that cannot be carried are dropped and listed
// in the report; a record that depends on a dropped record (a vector whose
// owner was dropped) goes with it. Only a frame header that cannot be
// converted fails the whole frame.
func (c *Converter) Frame(f *stream.Frame) (*stream.Frame, FrameReport, error) {
	rep := FrameReport{Frame: f.Header.Frame}
	ctx := record.Context{Frame: f.Header}
	from := f.Header.Gen

	h, err := Convert(f.Header, c.target, ctx)
	if err != nil {
		return nil, rep, fmt.Errorf("frame %d: %w", f.Header.Frame, err)
	}
	out := &stream.Frame{Header: h.(*record.FrameH)}

	convert := func(r record.Record) record.Record {
		x, err := Convert(r, c.target, ctx)
		if err != nil {
			rep.Dropped = append(rep.Dropped, Dropped{Class: r.Class(), Name: nameOf(r), Err: err})
			return nil
		}
		return x
	}
	vect := func(v *record.Vect) *record.Vect {
		if v == nil {
			return nil
		}
		if x := convert(v); x != nil {
			return x.(*record.Vect)
		}
		return nil
	}

	dets := map[*record.Detector]*record.Detector{}
	detector := func(d *record.Detector) *record.Detector {
		if d == nil {
			return nil
		}
		if x, ok := dets[d]; ok {
			return x
		}
		var nd *record.Detector
		if x := convert(d); x != nil {
			nd = x.(*record.Detector)
		}
		dets[d] = nd
		return nd
	}

	for _, d := range f.Detectors {
		if x := detector(d); x != nil {
			out.Detectors = append(out.Detectors, x)
		}
	}
	for _, hist := range f.History {
		if x := convert(hist); x != nil {
			out.History = append(out.History, x.(*record.History))
		}
	}
	if f.Raw != nil {
		if x := convert(f.Raw); x != nil {
			out.Raw = x.(*record.RawData)
		}
	}
	for _, a := range f.Adc {
		x := convert(a.AdcData)
		if x == nil {
			continue
		}
		out.Adc = append(out.Adc, stream.Adc{AdcData: x.(*record.AdcData), Detector: detector(a.Detector), Data: vect(a.Data), Aux: vect(a.Aux)})
	}
	for _, m := range f.Msgs {
		if x := convert(m); x != nil {
			out.Msgs = append(out.Msgs, x.(*record.Msg))
		}
	}
	for _, p := range f.Proc {
		x := convert(p.ProcData)
		if x == nil {
			continue
		}
		out.Proc = append(out.Proc, stream.Proc{ProcData: x.(*record.ProcData), Data: vect(p.Data), Aux: vect(p.Aux)})
	}
	for _, s := range f.Stats {
		x := convert(s.StatData)
		if x == nil {
			continue
		}
		out.Stats = append(out.Stats, stream.Stat{StatData: x.(*record.StatData), Detector: detector(s.Detector), Data: vect(s.Data)})
	}
	for _, t := range f.Triggers {
		x := convert(t.Event)
		if x == nil {
			continue
		}
		out.Triggers = append(out.Triggers, stream.Trigger{Event: x.(*record.Event), Data: vect(t.Data)})
	}
	for _, e := range f.Events {
		x := convert(e.SimEvent)
		if x == nil {
			continue
		}
		out.Events = append(out.Events, stream.Event{SimEvent: x.(*record.SimEvent), Data: vect(e.Data)})
	}
	for _, s := range f.Summaries {
		x := convert(s.Summary)
		if x == nil {
			continue
		}
		out.Summaries = append(out.Summaries, stream.Summary{Summary: x.(*record.Summary), Moments: vect(s.Moments)})
	}
	if f.End != nil {
		if x := convert(f.End); x != nil {
			out.End = x.(*record.EndOfFrame)
		}
	}

	if c.opts.History && from != c.target {
		out.History = append(out.History, &record.History{
			Gen:     c.target,
			Name:    c.opts.Program,
			Time:    record.GPSFromTime(c.opts.Now()).Sec,
			Comment: fmt.Sprintf("converted from %v to %v (%s)", from, c.target, c.id),
		})
	}
	return out, rep, nil
}

// Stream reads every frame from r, converts it and writes it to w. The
// writer must have been opened for the converter's target generation. The
// caller closes w.
func (c *Converter) Stream(r *stream.Reader, w *stream.Writer) (Report, error) {
	rep := Report{ID: c.id, From: r.Generation(), To: c.target, Dropped: map[record.ClassID]int{}}
	if w.Generation() != c.target {
		return rep, fmt.Errorf("%w: writer produces %v, converter targets %v", format.ErrUnsupportedMigration, w.Generation(), c.target)
	}
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if c.opts.SkipCorrupt && errors.Is(err, format.ErrIntegrity) {
				var fe *format.Error
				if errors.As(err, &fe) && fe.Class == uint16(record.ClassEndOfFile) {
					c.logger.Warn("file checksum mismatch", "error", err)
					continue
				}
				rep.Skipped++
				c.logger.Warn("skipping corrupt frame", "index", rep.Frames+rep.Skipped-1, "error", err)
				continue
			}
			return rep, err
		}
		out, fr, err := c.Frame(f)
		if err != nil {
			return rep, err
		}
		for _, d := range fr.Dropped {
			rep.Dropped[d.Class]++
			c.logger.Debug("record dropped", "frame", fr.Frame, "struct", d.Class.String(), "name", d.Name, "error", d.Err)
		}
		if err := w.WriteFrame(out); err != nil {
			return rep, err
		}
		rep.Frames++
	}
	c.logger.Info("conversion complete", "id", c.id.String(), "from", rep.From.String(), "to", rep.To.String(),
		"frames", rep.Frames, "skipped", rep.Skipped)
	return rep, nil
}
