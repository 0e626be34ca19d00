// Package toc implements the FrTOC table of contents: a per-file index of
// frame positions, the structure dictionary, detectors, static data, ADC
// and processed channels, events, simulated events and summary channels. The writer builds it while
// streaming; readers either parse the persisted copy or rebuild it with a
// linear scan.
package toc

import (
	"slices"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Frame is the TOC entry of one frame.
type Frame struct {
	DataQuality uint32
	GTime       record.GPSTime
	Dt          float64
	Run         int32
	Frame       uint32
	Position    uint64 // offset of the frame header structure
}

// SHEntry is one dictionary entry: a class id and its structure name.
type SHEntry struct {
	ID   record.ClassID
	Name string
}

// DetectorEntry locates the first occurrence of a detector.
type DetectorEntry struct {
	Name     string
	Position uint64
}

// TOC is an FrTOC structure.
type TOC struct {
	Gen       record.Generation
	ULeapS    int16
	Frames    []Frame
	SH        []SHEntry
	Detectors []DetectorEntry
	Stats     StatIndex
	Adc       ChannelIndex
	Proc      ChannelIndex
	Events    EventIndex
	Triggers  EventIndex
	Channels  ChannelIndex
}

func (t *TOC) Class() record.ClassID         { return record.ClassTOC }
func (t *TOC) Generation() record.Generation { return t.Gen }

func (t *TOC) Equal(o record.Record) bool {
	x, ok := o.(*TOC)
	return ok && t.Gen == x.Gen && t.ULeapS == x.ULeapS &&
		slices.Equal(t.Frames, x.Frames) && slices.Equal(t.SH, x.SH) && slices.Equal(t.Detectors, x.Detectors) &&
		t.Stats.equal(&x.Stats) && t.Adc.equal(&x.Adc) && t.Proc.equal(&x.Proc) &&
		t.Events.equal(&x.Events) && t.Triggers.equal(&x.Triggers) && t.Channels.equal(&x.Channels)
}

func (t *TOC) clone(g record.Generation) *TOC {
	return &TOC{
		Gen:       g,
		ULeapS:    t.ULeapS,
		Frames:    slices.Clone(t.Frames),
		SH:        slices.Clone(t.SH),
		Detectors: slices.Clone(t.Detectors),
		Stats:     t.Stats.clone(),
		Adc:       t.Adc.clone(),
		Proc:      t.Proc.clone(),
		Events:    t.Events.clone(),
		Triggers:  t.Triggers.clone(),
		Channels:  t.Channels.clone(),
	}
}

// NFrames returns the number of indexed frames.
func (t *TOC) NFrames() int { return len(t.Frames) }

// FramePosition returns the offset of frame i's header.
func (t *TOC) FramePosition(i int) (int64, bool) {
	if i < 0 || i >= len(t.Frames) {
		return 0, false
	}
	return int64(t.Frames[i].Position), true
}

// Detector returns the position of the first occurrence of name.
func (t *TOC) Detector(name string) (int64, bool) {
	for _, d := range t.Detectors {
		if d.Name == name {
			return int64(d.Position), true
		}
	}
	return 0, false
}

const frameBytes = 2*format.Int4Bytes + record.GPSTimeBytes + format.Real8Bytes + format.Int4Bytes + format.Int8Bytes

// Bytes returns the encoded size of the TOC body.
func (t *TOC) Bytes() int64 {
	n := int64(format.Int2Bytes+format.Int4Bytes) + int64(len(t.Frames))*frameBytes
	n += format.Int2Bytes
	for _, s := range t.SH {
		n += format.Int2Bytes + format.StringBytes(s.Name)
	}
	n += format.Int4Bytes
	for _, d := range t.Detectors {
		n += format.StringBytes(d.Name) + format.Int8Bytes
	}
	return n + t.Stats.Bytes() + t.Adc.Bytes() + t.Proc.Bytes() + t.Events.Bytes() + t.Triggers.Bytes() + t.Channels.Bytes()
}

func (t *TOC) encode(e *format.Encoder) {
	e.PutI16(t.ULeapS)
	e.PutU32(uint32(len(t.Frames)))
	for _, f := range t.Frames {
		e.PutU32(f.DataQuality)
	}
	for _, f := range t.Frames {
		e.PutU32(f.GTime.Sec)
	}
	for _, f := range t.Frames {
		e.PutU32(f.GTime.Nano)
	}
	for _, f := range t.Frames {
		e.PutF64(f.Dt)
	}
	for _, f := range t.Frames {
		e.PutI32(f.Run)
	}
	for _, f := range t.Frames {
		e.PutU32(f.Frame)
	}
	for _, f := range t.Frames {
		e.PutU64(f.Position)
	}
	e.PutU16(uint16(len(t.SH)))
	for _, s := range t.SH {
		e.PutU16(uint16(s.ID))
	}
	for _, s := range t.SH {
		e.PutString(s.Name)
	}
	e.PutU32(uint32(len(t.Detectors)))
	for _, d := range t.Detectors {
		e.PutString(d.Name)
	}
	for _, d := range t.Detectors {
		e.PutU64(d.Position)
	}
	t.Stats.encode(e)
	t.Adc.encode(e)
	t.Proc.encode(e)
	t.Events.encode(e)
	t.Triggers.encode(e)
	t.Channels.encode(e)
}

func decode(d *format.Decoder, ctx record.Context) record.Record {
	t := &TOC{Gen: ctx.Gen}
	t.ULeapS = d.I16()
	if n := d.Count(frameBytes); n > 0 {
		t.Frames = make([]Frame, n)
		for i := range t.Frames {
			t.Frames[i].DataQuality = d.U32()
		}
		for i := range t.Frames {
			t.Frames[i].GTime.Sec = d.U32()
		}
		for i := range t.Frames {
			t.Frames[i].GTime.Nano = d.U32()
		}
		for i := range t.Frames {
			t.Frames[i].Dt = d.F64()
		}
		for i := range t.Frames {
			t.Frames[i].Run = d.I32()
		}
		for i := range t.Frames {
			t.Frames[i].Frame = d.U32()
		}
		for i := range t.Frames {
			t.Frames[i].Position = d.U64()
		}
	}
	if n := int(d.U16()); n > 0 && d.CheckCount(n, 2*format.Int2Bytes) {
		t.SH = make([]SHEntry, n)
		for i := range t.SH {
			t.SH[i].ID = record.ClassID(d.U16())
		}
		for i := range t.SH {
			t.SH[i].Name = d.ReadString()
		}
	}
	if n := d.Count(format.Int2Bytes + format.Int8Bytes); n > 0 {
		t.Detectors = make([]DetectorEntry, n)
		for i := range t.Detectors {
			t.Detectors[i].Name = d.ReadString()
		}
		for i := range t.Detectors {
			t.Detectors[i].Position = d.U64()
		}
	}
	t.Stats.decode(d)
	t.Adc.ids = true
	t.Adc.decode(d, len(t.Frames))
	t.Proc.decode(d, len(t.Frames))
	t.Events.decode(d)
	t.Triggers.decode(d)
	t.Channels.decode(d, len(t.Frames))
	return t
}

func init() {
	k := record.Register(&record.Kind{
		Class:   record.ClassTOC,
		Name:    "FrTOC",
		Comment: "Table of Contents Structure",
		Retag: func(r record.Record, g record.Generation) record.Record {
			return r.(*TOC).clone(g)
		},
	})
	k.Define(record.Gen4, &record.Codec{
		Description: record.NewDescription("FrTOC", record.ClassTOC, "Table of Contents Structure",
			record.Element{Name: "ULeapS", Type: "INT_2S", Comment: "Leap seconds from GPS epoch"},
			record.Element{Name: "nFrame", Type: "INT_4U", Comment: "Number of frames in the file"},
			record.Element{Name: "dataQuality", Type: "INT_4U[nFrame]", Comment: "Frame data quality words"},
			record.Element{Name: "GTimeS", Type: "INT_4U[nFrame]", Comment: "Frame start times, GPS seconds"},
			record.Element{Name: "GTimeN", Type: "INT_4U[nFrame]", Comment: "Frame start times, nanoseconds"},
			record.Element{Name: "dt", Type: "REAL_8[nFrame]", Comment: "Frame lengths, seconds"},
			record.Element{Name: "runs", Type: "INT_4S[nFrame]", Comment: "Run numbers"},
			record.Element{Name: "frame", Type: "INT_4U[nFrame]", Comment: "Frame numbers"},
			record.Element{Name: "positionH", Type: "INT_8U[nFrame]", Comment: "FrameH positions from beginning of file"},
			record.Element{Name: "nSH", Type: "INT_2U", Comment: "Number of FrSH structures"},
			record.Element{Name: "SHid", Type: "INT_2U[nSH]", Comment: "Class ids of the FrSH structures"},
			record.Element{Name: "SHname", Type: "STRING[nSH]", Comment: "Names of the FrSH structures"},
			record.Element{Name: "nDetector", Type: "INT_4U", Comment: "Number of distinct detectors"},
			record.Element{Name: "nameDetector", Type: "STRING[nDetector]", Comment: "Detector names"},
			record.Element{Name: "positionDetector", Type: "INT_8U[nDetector]", Comment: "First FrDetector positions"},
			record.Element{Name: "nStatType", Type: "INT_4U", Comment: "Number of static data names"},
			record.Element{Name: "nameStat", Type: "STRING[nStatType]", Comment: "Static data names"},
			record.Element{Name: "detector", Type: "STRING[nStatType]", Comment: "Detector of each static data name"},
			record.Element{Name: "nStatInstance", Type: "INT_4U[nStatType]", Comment: "Occurrences per static data name"},
			record.Element{Name: "nTotalStat", Type: "INT_4U", Comment: "Total static data occurrences"},
			record.Element{Name: "tStart", Type: "INT_4U[nTotalStat]", Comment: "Validity start times"},
			record.Element{Name: "tEnd", Type: "INT_4U[nTotalStat]", Comment: "Validity end times"},
			record.Element{Name: "version", Type: "INT_4U[nTotalStat]", Comment: "Static data versions"},
			record.Element{Name: "positionStat", Type: "INT_8U[nTotalStat]", Comment: "FrStatData positions"},
			record.Element{Name: "nADC", Type: "INT_4U", Comment: "Number of ADC channels"},
			record.Element{Name: "nameADC", Type: "STRING[nADC]", Comment: "ADC channel names"},
			record.Element{Name: "channelID", Type: "INT_4U[nADC]", Comment: "ADC channel numbers"},
			record.Element{Name: "groupID", Type: "INT_4U[nADC]", Comment: "ADC channel groups"},
			record.Element{Name: "positionADC", Type: "INT_8U[nADC][nFrame]", Comment: "FrAdcData positions, 0 when absent"},
			record.Element{Name: "nProc", Type: "INT_4U", Comment: "Number of processed channels"},
			record.Element{Name: "nameProc", Type: "STRING[nProc]", Comment: "Processed channel names"},
			record.Element{Name: "positionProc", Type: "INT_8U[nProc][nFrame]", Comment: "FrProcData positions, 0 when absent"},
			record.Element{Name: "nSimEventType", Type: "INT_4U", Comment: "Number of simulated event names"},
			record.Element{Name: "nameSimEvent", Type: "STRING[nSimEventType]", Comment: "Simulated event names"},
			record.Element{Name: "nSimEvent", Type: "INT_4U[nSimEventType]", Comment: "Occurrences per event name"},
			record.Element{Name: "nTotalSimEvent", Type: "INT_4U", Comment: "Total simulated event occurrences"},
			record.Element{Name: "GTimeSSim", Type: "INT_4U[nTotalSimEvent]", Comment: "Event times, GPS seconds"},
			record.Element{Name: "GTimeNSim", Type: "INT_4U[nTotalSimEvent]", Comment: "Event times, nanoseconds"},
			record.Element{Name: "amplitudeSimEvent", Type: "REAL_4[nTotalSimEvent]", Comment: "Event amplitudes"},
			record.Element{Name: "positionSimEvent", Type: "INT_8U[nTotalSimEvent]", Comment: "FrSimEvent positions"},
			record.Element{Name: "nEventType", Type: "INT_4U", Comment: "Number of event names"},
			record.Element{Name: "nameEvent", Type: "STRING[nEventType]", Comment: "Event names"},
			record.Element{Name: "nEvent", Type: "INT_4U[nEventType]", Comment: "Occurrences per event name"},
			record.Element{Name: "nTotalEvent", Type: "INT_4U", Comment: "Total event occurrences"},
			record.Element{Name: "GTimeSEvent", Type: "INT_4U[nTotalEvent]", Comment: "Event times, GPS seconds"},
			record.Element{Name: "GTimeNEvent", Type: "INT_4U[nTotalEvent]", Comment: "Event times, nanoseconds"},
			record.Element{Name: "amplitudeEvent", Type: "REAL_4[nTotalEvent]", Comment: "Event amplitudes"},
			record.Element{Name: "positionEvent", Type: "INT_8U[nTotalEvent]", Comment: "FrEvent positions"},
			record.Element{Name: "nSummary", Type: "INT_4U", Comment: "Number of summary channels"},
			record.Element{Name: "nameSum", Type: "STRING[nSummary]", Comment: "Summary channel names"},
			record.Element{Name: "positionSum", Type: "INT_8U[nSummary][nFrame]", Comment: "FrSummary positions, 0 when absent"},
		),
		Bytes:  func(r record.Record, _ record.Context) int64 { return r.(*TOC).Bytes() },
		Encode: func(e *format.Encoder, r record.Record, _ record.Context) { r.(*TOC).encode(e) },
		Decode: decode,
	})
}
