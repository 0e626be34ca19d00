package migrate

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"gwframe/internal/format"
	"gwframe/internal/record"
	"gwframe/internal/stream"
)

func TestPath(t *testing.T) {
	tests := []struct {
		class    record.ClassID
		from, to record.Generation
		want     []record.Generation
	}{
		{record.ClassFrameH, record.Gen4, record.Gen7, []record.Generation{4, 5, 6, 7}},
		{record.ClassFrameH, record.Gen8, record.Gen3, []record.Generation{8, 7, 6, 5, 4, 3}},
		{record.ClassDetector, record.Gen6, record.Gen6, []record.Generation{6}},
		{record.ClassTOC, record.Gen4, record.Gen8, []record.Generation{4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		got, err := Path(tt.class, tt.from, tt.to)
		if err != nil {
			t.Fatalf("Path(%s, %v, %v): %v", tt.class, tt.from, tt.to, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("Path(%s, %v, %v) = %v, want %v", tt.class, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPathUnsupported(t *testing.T) {
	tests := []struct {
		class    record.ClassID
		from, to record.Generation
	}{
		{record.ClassDetector, record.Gen4, record.Gen3},
		{record.ClassSimEvent, record.Gen8, record.Gen3},
		{record.ClassEndOfFile, record.Gen3, record.Gen4},
		{record.ClassTOC, record.Gen5, record.Gen3},
		{record.ClassFrameH, record.Gen3, 9},
		{record.ClassID(99), record.Gen4, record.Gen5},
	}
	for _, tt := range tests {
		if _, err := Path(tt.class, tt.from, tt.to); !errors.Is(err, format.ErrUnsupportedMigration) {
			t.Errorf("Path(%s, %v, %v): expected ErrUnsupportedMigration, got %v", tt.class, tt.from, tt.to, err)
		}
	}
}

// A generation 4 record reaches generation 7 through 4->5 (alias), 5->6
// (layout change) and 6->7 (alias).
func TestConvertGeneration4To7(t *testing.T) {
	det := &record.Detector{Gen: record.Gen4, Name: "H1", Elevation: 142.5, ArmXAzimuth: 2.2, ArmYAzimuth: 3.7,
		LongitudeDMS: record.DMS{Deg: -119, Min: -24, Sec: -27.5}, LatitudeDMS: record.DMS{Deg: 46, Min: 27, Sec: 18.5}}
	got, err := Convert(det, record.Gen7, record.Context{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	d := got.(*record.Detector)
	if d.Gen != record.Gen7 || d.Class() != record.ClassDetector {
		t.Fatalf("got %v %s", d.Gen, d.Class())
	}
	if d.Longitude != det.LongitudeDMS.Radians() || d.Latitude != det.LatitudeDMS.Radians() {
		t.Errorf("position: got %v, %v", d.Longitude, d.Latitude)
	}
	if d.Prefix != [2]byte{'H', '1'} || d.Name != "H1" || d.Elevation != 142.5 {
		t.Errorf("fields: got %+v", d)
	}
	if det.Gen != record.Gen4 {
		t.Errorf("source record modified")
	}

	// The converted record encodes under the generation 7 codec.
	n, err := record.Bytes(d, record.Context{Gen: record.Gen7})
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	e := format.NewEncoder(format.LittleEndian, nil)
	if err := record.Write(e, d, record.Context{Gen: record.Gen7}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if int64(e.Len()) != n {
		t.Errorf("Bytes = %d, Write emitted %d", n, e.Len())
	}

	h := &record.FrameH{Gen: record.Gen4, Name: "LIGO", Run: 3, Frame: 9, LocalTime: -3600, Dt: 1}
	got, err = Convert(h, record.Gen7, record.Context{})
	if err != nil {
		t.Fatalf("Convert FrameH: %v", err)
	}
	fh := got.(*record.FrameH)
	if fh.Gen != record.Gen7 || fh.LocalTime != 0 || fh.DataQuality != 0 || fh.Frame != 9 || fh.Name != "LIGO" {
		t.Errorf("FrameH: got %+v", fh)
	}
}

func TestConvertSameGenerationCopies(t *testing.T) {
	h := &record.History{Gen: record.Gen6, Name: "a", Comment: "b"}
	got, err := Convert(h, record.Gen6, record.Context{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got == record.Record(h) || !got.Equal(h) {
		t.Fatalf("expected an equal copy")
	}
}

func TestConvertRoundTrip(t *testing.T) {
	s := &record.StatData{Gen: record.Gen3, Name: "cal", Comment: "c", Representation: "r",
		TimeStart: 1, TimeEnd: 2, Version: 3, Data: record.Ptr{Class: record.ClassVect, Instance: 4}}
	up, err := Convert(s, record.Gen8, record.Context{})
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	down, err := Convert(up, record.Gen3, record.Context{})
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if !down.Equal(s) {
		t.Fatalf("round trip: got %+v, want %+v", down, s)
	}

	wide := &record.StatData{Gen: record.Gen6, Name: "cal", Data: record.Ptr{Class: record.ClassVect, Instance: 1 << 20}}
	if _, err := Convert(wide, record.Gen5, record.Context{}); !errors.Is(err, format.ErrUnsupportedMigration) {
		t.Fatalf("wide pointer: expected ErrUnsupportedMigration, got %v", err)
	}
}

func testFrame(t *testing.T, g record.Generation, i int) *stream.Frame {
	t.Helper()
	h := &record.FrameH{Gen: g, Name: "LIGO", Run: 1, Frame: uint32(i), GTime: record.GPSTime{Sec: 1000000000 + uint32(i)}, Dt: 1}
	det := &record.Detector{Gen: g, Name: "L1", Elevation: -6.5}
	data, err := record.NewVect(g, "cal", record.VectC, []byte("PAYLOAD-OF-FRAME"+string(rune('A'+i))), record.Dim{}, record.CompressRaw)
	if err != nil {
		t.Fatalf("NewVect: %v", err)
	}
	wave, err := record.NewVect(g, "wave", record.Vect4R, make([]byte, 16), record.Dim{}, record.CompressGzip)
	if err != nil {
		t.Fatalf("NewVect: %v", err)
	}
	return &stream.Frame{
		Header:    h,
		Detectors: []*record.Detector{det},
		History:   []*record.History{{Gen: g, Name: "daq", Comment: "acquired"}},
		Stats: []stream.Stat{{
			StatData: &record.StatData{Gen: g, Name: "calibration", Version: uint32(i)},
			Detector: det,
			Data:     data,
		}},
		Events: []stream.Event{{SimEvent: &record.SimEvent{Gen: g, Name: "inj", GTime: h.GTime}, Data: wave}},
		Summaries: []stream.Summary{{
			Summary: &record.Summary{Gen: g, Name: "L1:range", Test: "mean", GTime: h.GTime},
		}},
	}
}

func TestFrameDropsUnsupported(t *testing.T) {
	c := New(record.Gen3, Options{})
	out, rep, err := c.Frame(testFrame(t, record.Gen6, 0))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if out.Header.Gen != record.Gen3 {
		t.Fatalf("header generation %v", out.Header.Gen)
	}
	if len(out.Detectors) != 0 || len(out.Events) != 0 {
		t.Fatalf("detectors and events should be dropped: %d, %d", len(out.Detectors), len(out.Events))
	}
	if len(out.Stats) != 1 || out.Stats[0].Detector != nil || out.Stats[0].Data == nil || out.Stats[0].Data.Gen != record.Gen3 {
		t.Fatalf("stats: got %+v", out.Stats)
	}
	if len(out.Summaries) != 1 || out.Summaries[0].Summary.GTime != (record.GPSTime{}) {
		t.Fatalf("summaries: got %+v", out.Summaries)
	}
	var classes []record.ClassID
	for _, d := range rep.Dropped {
		if !errors.Is(d.Err, format.ErrUnsupportedMigration) {
			t.Errorf("%s %q: %v", d.Class, d.Name, d.Err)
		}
		classes = append(classes, d.Class)
	}
	// The detector is dropped once even though the stat references it too.
	if !slices.Equal(classes, []record.ClassID{record.ClassDetector, record.ClassSimEvent}) {
		t.Fatalf("dropped: got %v", classes)
	}
}

func TestFrameCarriesRawChannels(t *testing.T) {
	f := testFrame(t, record.Gen4, 0)
	det := f.Detectors[0]
	f.Adc = []stream.Adc{{
		AdcData:  &record.AdcData{Gen: record.Gen4, Name: "L1:PEM", TimeOffsetS: 1, TimeOffsetN: 500000000},
		Detector: det,
	}}
	f.Msgs = []*record.Msg{{Gen: record.Gen4, Alarm: "lock", Message: "lost"}}
	f.Proc = []stream.Proc{{ProcData: &record.ProcData{Gen: record.Gen4, Name: "L1:STRAIN", SampleRate: 16384}}}
	f.Triggers = []stream.Trigger{{Event: &record.Event{Gen: record.Gen4, Name: "burst"}}}

	out, rep, err := New(record.Gen8, Options{}).Frame(f)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(rep.Dropped) != 0 {
		t.Fatalf("dropped: %+v", rep.Dropped)
	}
	if len(out.Adc) != 1 || out.Adc[0].Detector != out.Detectors[0] || out.Adc[0].AdcData.TimeOffset != 1.5 {
		t.Fatalf("adc: %+v", out.Adc)
	}
	if len(out.Msgs) != 1 || out.Msgs[0].GTime != f.Header.GTime {
		t.Fatalf("messages: %+v", out.Msgs)
	}
	if len(out.Proc) != 1 || out.Proc[0].ProcData.Type != record.ProcTimeSeries {
		t.Fatalf("proc: %+v", out.Proc)
	}
	if len(out.Triggers) != 1 || out.Triggers[0].Event.Gen != record.Gen8 {
		t.Fatalf("triggers: %+v", out.Triggers)
	}

	down, rep, err := New(record.Gen3, Options{}).Frame(f)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(down.Adc) != 1 || down.Adc[0].Detector != nil || len(down.Msgs) != 0 || len(down.Triggers) != 0 {
		t.Fatalf("v3 frame: adc %+v, %d messages, %d triggers", down.Adc, len(down.Msgs), len(down.Triggers))
	}
	var classes []record.ClassID
	for _, d := range rep.Dropped {
		classes = append(classes, d.Class)
	}
	want := []record.ClassID{record.ClassDetector, record.ClassMsg, record.ClassEvent, record.ClassSimEvent}
	if !slices.Equal(classes, want) {
		t.Fatalf("dropped: got %v, want %v", classes, want)
	}
}

func TestFrameSharesDetectors(t *testing.T) {
	out, _, err := New(record.Gen8, Options{}).Frame(testFrame(t, record.Gen4, 0))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if out.Stats[0].Detector != out.Detectors[0] {
		t.Fatalf("stat detector not shared after conversion")
	}
}

func TestFrameHistory(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(record.Gen8, Options{History: true, Program: "framectl", Now: func() time.Time { return now }})
	out, _, err := c.Frame(testFrame(t, record.Gen6, 0))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(out.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(out.History))
	}
	h := out.History[1]
	if h.Name != "framectl" || h.Time != record.GPSFromTime(now).Sec || !strings.Contains(h.Comment, c.ID().String()) {
		t.Fatalf("history: got %+v", h)
	}

	// No entry when nothing changes.
	out, _, err = New(record.Gen6, Options{History: true}).Frame(testFrame(t, record.Gen6, 0))
	if err != nil || len(out.History) != 1 {
		t.Fatalf("same generation: %d entries, %v", len(out.History), err)
	}
}

func writeFrames(t *testing.T, g record.Generation, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := stream.NewWriter(&buf, stream.Config{Gen: g})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := range n {
		if err := w.WriteFrame(testFrame(t, g, i)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func convertStream(t *testing.T, data []byte, c *Converter) (Report, []byte, error) {
	t.Helper()
	r, err := stream.NewReader(bytes.NewReader(data), int64(len(data)), stream.Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var out bytes.Buffer
	w, err := stream.NewWriter(&out, stream.Config{Gen: c.Target()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	rep, err := c.Stream(r, w)
	if err != nil {
		return rep, nil, err
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return rep, out.Bytes(), nil
}

func TestStream(t *testing.T) {
	rep, out, err := convertStream(t, writeFrames(t, record.Gen4, 3), New(record.Gen8, Options{History: true}))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if rep.Frames != 3 || rep.Skipped != 0 || rep.From != record.Gen4 || rep.To != record.Gen8 {
		t.Fatalf("report: %+v", rep)
	}

	r, err := stream.NewReader(bytes.NewReader(out), int64(len(out)), stream.Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Generation() != record.Gen8 {
		t.Fatalf("generation %v", r.Generation())
	}
	for i := range 3 {
		f, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Header.Frame != uint32(i) || len(f.History) != 2 || len(f.Stats) != 1 || f.Stats[0].Detector == nil {
			t.Fatalf("frame %d: %+v", i, f)
		}
		if want := "PAYLOAD-OF-FRAME" + string(rune('A'+i)); string(f.Stats[0].Data.Data) != want {
			t.Fatalf("frame %d payload %q", i, f.Stats[0].Data.Data)
		}
	}
}

func TestStreamSkipCorrupt(t *testing.T) {
	data := writeFrames(t, record.Gen8, 3)
	i := bytes.Index(data, []byte("PAYLOAD-OF-FRAMEB"))
	if i < 0 {
		t.Fatal("payload not found")
	}
	data[i] ^= 0xff

	if _, _, err := convertStream(t, data, New(record.Gen6, Options{})); !errors.Is(err, format.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
	rep, _, err := convertStream(t, data, New(record.Gen6, Options{SkipCorrupt: true}))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if rep.Frames != 2 || rep.Skipped != 1 {
		t.Fatalf("report: %+v", rep)
	}
}

func TestStreamRejectsWriterGeneration(t *testing.T) {
	data := writeFrames(t, record.Gen6, 1)
	r, err := stream.NewReader(bytes.NewReader(data), int64(len(data)), stream.Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var out bytes.Buffer
	w, err := stream.NewWriter(&out, stream.Config{Gen: record.Gen7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := New(record.Gen8, Options{}).Stream(r, w); !errors.Is(err, format.ErrUnsupportedMigration) {
		t.Fatalf("expected ErrUnsupportedMigration, got %v", err)
	}
}
