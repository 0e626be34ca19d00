package cli

import (
	"fmt"
	"strings"

	"gwframe/internal/record"
	"gwframe/internal/stream"
	"gwframe/internal/toc"
)

// summarize renders the interesting fields of a record on one line.
func summarize(r record.Record) string {
	switch x := r.(type) {
	case *record.SH:
		return fmt.Sprintf("%s id=%d", x.Name, x.ID)
	case *record.SE:
		return fmt.Sprintf("%s %s", x.Name, x.Type)
	case *record.FrameH:
		return fmt.Sprintf("%s run=%d frame=%d gps=%s dt=%g", x.Name, x.Run, x.Frame, x.GTime, x.Dt)
	case *record.Detector:
		return fmt.Sprintf("%s elevation=%g", x.Name, x.Elevation)
	case *record.History:
		return fmt.Sprintf("%s time=%d %q", x.Name, x.Time, x.Comment)
	case *record.RawData:
		return fmt.Sprintf("%s adc=%s msg=%s", x.Name, x.FirstAdc, x.LogMsg)
	case *record.AdcData:
		return fmt.Sprintf("%s group=%d channel=%d rate=%g detector=%s", x.Name, x.ChannelGroup, x.ChannelNumber, x.SampleRate, x.Detector)
	case *record.Msg:
		return fmt.Sprintf("%s severity=%d %q", x.Alarm, x.Severity, x.Message)
	case *record.ProcData:
		return fmt.Sprintf("%s type=%d fshift=%g", x.Name, x.Type, x.FShift)
	case *record.Event:
		return fmt.Sprintf("%s gps=%s amplitude=%g probability=%g", x.Name, x.GTime, x.Amplitude, x.Probability)
	case *record.StatData:
		return fmt.Sprintf("%s %s version=%d [%d,%d]", x.Name, x.Representation, x.Version, x.TimeStart, x.TimeEnd)
	case *record.SimEvent:
		return fmt.Sprintf("%s gps=%s amplitude=%g", x.Name, x.GTime, x.Amplitude)
	case *record.Summary:
		return fmt.Sprintf("%s test=%s gps=%s", x.Name, x.Test, x.GTime)
	case *record.Vect:
		return fmt.Sprintf("%s type=%d n=%d compress=%#x bytes=%d", x.Name, x.Type, x.NData, x.Compress, len(x.Data))
	case *record.EndOfFrame:
		return fmt.Sprintf("run=%d frame=%d", x.Run, x.Frame)
	case *record.EndOfFile:
		return fmt.Sprintf("frames=%d bytes=%d seekTOC=%d", x.NFrames, x.NBytes, x.SeekTOC)
	case *toc.TOC:
		return fmt.Sprintf("frames=%d detectors=%d stats=%d adc=%d proc=%d events=%d triggers=%d channels=%d",
			x.NFrames(), len(x.Detectors), x.Stats.Len(), x.Adc.Len(), x.Proc.Len(), x.Events.Len(), x.Triggers.Len(), x.Channels.Len())
	}
	return ""
}

// entryView is the JSON form of one structure.
type entryView struct {
	Pos      int64         `json:"pos"`
	Class    string        `json:"class"`
	Instance uint32        `json:"instance"`
	Summary  string        `json:"summary,omitempty"`
	Record   record.Record `json:"record,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func viewEntry(e stream.Entry, full bool, err error) entryView {
	v := entryView{Pos: e.Pos, Instance: e.Instance}
	if e.Record != nil {
		v.Class = e.Record.Class().String()
		v.Summary = summarize(e.Record)
		if full {
			v.Record = e.Record
		}
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// frameView is the JSON form of a frame.
type frameView struct {
	Index     int      `json:"index"`
	Name      string   `json:"name"`
	Run       int32    `json:"run"`
	Frame     uint32   `json:"frame"`
	GPS       string   `json:"gps"`
	Dt        float64  `json:"dt"`
	Detectors []string `json:"detectors,omitempty"`
	History   []string `json:"history,omitempty"`
	Adc       []string `json:"adc,omitempty"`
	Proc      []string `json:"proc,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Stats     []string `json:"stats,omitempty"`
	Triggers  []string `json:"triggers,omitempty"`
	Events    []string `json:"events,omitempty"`
	Summaries []string `json:"summaries,omitempty"`
}

func viewFrame(i int, f *stream.Frame) frameView {
	h := f.Header
	v := frameView{Index: i, Name: h.Name, Run: h.Run, Frame: h.Frame, GPS: h.GTime.String(), Dt: h.Dt}
	for _, d := range f.Detectors {
		v.Detectors = append(v.Detectors, d.Name)
	}
	for _, x := range f.History {
		v.History = append(v.History, fmt.Sprintf("%s: %s", x.Name, x.Comment))
	}
	for _, x := range f.Adc {
		v.Adc = append(v.Adc, x.AdcData.Name)
	}
	for _, x := range f.Proc {
		v.Proc = append(v.Proc, x.ProcData.Name)
	}
	for _, m := range f.Msgs {
		v.Messages = append(v.Messages, fmt.Sprintf("%s: %s", m.Alarm, m.Message))
	}
	for _, s := range f.Stats {
		v.Stats = append(v.Stats, s.StatData.Name)
	}
	for _, t := range f.Triggers {
		v.Triggers = append(v.Triggers, t.Event.Name)
	}
	for _, e := range f.Events {
		v.Events = append(v.Events, e.SimEvent.Name)
	}
	for _, s := range f.Summaries {
		v.Summaries = append(v.Summaries, s.Summary.Name)
	}
	return v
}

func (v frameView) row() []string {
	return []string{
		fmt.Sprint(v.Index), v.Name, fmt.Sprint(v.Run), fmt.Sprint(v.Frame), v.GPS, fmt.Sprint(v.Dt),
		strings.Join(v.Detectors, ","), fmt.Sprint(len(v.Adc)), fmt.Sprint(len(v.Proc)), fmt.Sprint(len(v.Stats)),
		fmt.Sprint(len(v.Triggers)), fmt.Sprint(len(v.Events)), fmt.Sprint(len(v.History)),
	}
}

var frameHeader = []string{"INDEX", "NAME", "RUN", "FRAME", "GPS", "DT", "DETECTORS", "ADC", "PROC", "STATS", "TRIGGERS", "EVENTS", "HISTORY"}
