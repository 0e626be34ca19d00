package record

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"gwframe/internal/format"
)

// sample returns a fully populated record of class c valid in generation g,
// with every string set to s. Fields that g does not carry are left zero.
func sample(t *testing.T, c ClassID, g Generation, s string) Record {
	t.Helper()
	ptr := func(class ClassID, n uint32) Ptr { return Ptr{Class: class, Instance: n} }
	switch c {
	case ClassSH:
		return &SH{Gen: g, Name: s, ID: ClassFrameH, Comment: s}
	case ClassSE:
		return &SE{Gen: g, Name: s, Type: "INT_4U", Comment: s}
	case ClassFrameH:
		x := &FrameH{Gen: g, Name: s, Run: -3, Frame: 42, GTime: GPSTime{Sec: 1000000000, Nano: 5}, ULeapS: 18, Dt: 16,
			DetectProc: ptr(ClassDetector, 1), History: ptr(ClassHistory, 2), StatData: ptr(ClassStatData, 3), Summary: ptr(ClassSummary, 4),
			RawData: ptr(ClassRawData, 6), ProcData: ptr(ClassProcData, 7)}
		if g > Gen3 {
			x.SimEvent = ptr(ClassSimEvent, 5)
			x.Event = ptr(ClassEvent, 8)
		}
		if g >= Gen6 {
			x.DataQuality = 7
		} else {
			x.LocalTime = -3600
		}
		return x
	case ClassEndOfFrame:
		x := &EndOfFrame{Gen: g, Run: 5, Frame: 42}
		switch {
		case g == Gen6 || g == Gen7:
			x.ChkType, x.ChkSum = 1, 0xdeadbeef
		case g == Gen8:
			x.GTime = GPSTime{Sec: 12, Nano: 34}
		}
		return x
	case ClassEndOfFile:
		x := &EndOfFile{Gen: g, NFrames: 3, NBytes: 4096, SeekTOC: 512, ChkSum: 99}
		if g < Gen8 {
			x.ChkType = 1
		} else {
			x.ChkSumHeader, x.ChkSumFile = 7, 8
		}
		return x
	case ClassHistory:
		return &History{Gen: g, Name: s, Time: 1234, Comment: s, Next: ptr(ClassHistory, 9)}
	case ClassDetector:
		x := &Detector{Gen: g, Name: s, Elevation: 142.5, ArmXAzimuth: 2.2, ArmYAzimuth: 3.7, Next: ptr(ClassDetector, 2)}
		if g >= Gen6 {
			x.Prefix = [2]byte{'H', '1'}
			x.Longitude, x.Latitude = -2.08, 0.81
			x.ArmXAltitude, x.ArmYAltitude = -0.0006, 0.00001
			x.ArmXMidpoint, x.ArmYMidpoint = 1997.5, 1997.5
			x.LocalTime = -25200
		} else {
			x.LongitudeDMS = DMS{Deg: -119, Min: -24, Sec: -27.5}
			x.LatitudeDMS = DMS{Deg: 46, Min: 27, Sec: 18.5}
		}
		return x
	case ClassStatData:
		return &StatData{Gen: g, Name: s, Comment: s, Representation: s, TimeStart: 1, TimeEnd: 2, Version: 3,
			Detector: ptr(ClassDetector, 1), Data: ptr(ClassVect, 2), Next: ptr(ClassStatData, 3)}
	case ClassSimEvent:
		x := &SimEvent{Gen: g, Name: s, Comment: s, Inputs: s, GTime: GPSTime{Sec: 9, Nano: 1}, TimeBefore: 0.5,
			TimeAfter: 1.5, Amplitude: 1e-21, Data: ptr(ClassVect, 1)}
		if g >= Gen6 {
			x.Params = []Param{{Name: s, Value: 1.25}, {Name: "mass", Value: 30}}
		}
		return x
	case ClassSummary:
		x := &Summary{Gen: g, Name: s, Comment: s, Test: s, Moments: ptr(ClassVect, 1)}
		if g > Gen3 {
			x.GTime = GPSTime{Sec: 77}
		}
		return x
	case ClassAdcData:
		x := &AdcData{Gen: g, Name: s, Comment: s, ChannelGroup: 1, ChannelNumber: 12, NBits: 16, Bias: 0.5, Slope: 6.1e-4,
			Units: s, SampleRate: 16384, FShift: 10, DataValid: 1,
			Data: ptr(ClassVect, 1), Aux: ptr(ClassVect, 2), Next: ptr(ClassAdcData, 3)}
		switch {
		case g >= Gen6:
			x.TimeOffset, x.Phase = 0.25, 1.5
		default:
			x.TimeOffsetS, x.TimeOffsetN = 3, 5
		}
		if g > Gen3 {
			x.Detector = ptr(ClassDetector, 4)
		}
		return x
	case ClassProcData:
		x := &ProcData{Gen: g, Name: s, Comment: s, FShift: 2.5, Data: ptr(ClassVect, 1), Aux: ptr(ClassVect, 2), Next: ptr(ClassProcData, 3)}
		if g >= Gen6 {
			x.Type, x.SubType = ProcFrequency, 2
			x.TimeOffset, x.TRange, x.Phase, x.FRange, x.BW = 0.5, 16, 0.75, 8192, 0.0625
			x.AuxParams = []Param{{Name: s, Value: 4}, {Name: "gain", Value: -2.5}}
		} else {
			x.SampleRate, x.TimeOffsetS, x.TimeOffsetN = 256, 2, 250000000
		}
		return x
	case ClassEvent:
		x := &Event{Gen: g, Name: s, Comment: s, Inputs: s, GTime: GPSTime{Sec: 1000000123, Nano: 9}, TimeBefore: 0.25,
			TimeAfter: 0.5, Status: 3, Amplitude: 8.5, Probability: 0.125, Statistics: s,
			Data: ptr(ClassVect, 1), Next: ptr(ClassEvent, 2)}
		if g >= Gen6 {
			x.Params = []Param{{Name: s, Value: 12.5}, {Name: "snr", Value: 9}}
		}
		return x
	case ClassMsg:
		x := &Msg{Gen: g, Alarm: s, Message: s, Severity: 2, Next: ptr(ClassMsg, 1)}
		if g >= Gen6 {
			x.GTime = GPSTime{Sec: 1000000000, Nano: 5}
		}
		return x
	case ClassRawData:
		x := &RawData{Gen: g, Name: s, FirstAdc: ptr(ClassAdcData, 1), More: ptr(ClassVect, 2)}
		if g > Gen3 {
			x.LogMsg = ptr(ClassMsg, 3)
		}
		return x
	case ClassVect:
		x := &Vect{Gen: g, Name: s, Type: Vect4R, NData: 4, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			Dims: []Dim{{NX: 4, DX: 0.25, UnitX: s}}, UnitY: s, Next: ptr(ClassVect, 3)}
		if g > Gen3 {
			x.Dims[0].StartX = 2.5
		}
		return x
	}
	t.Fatalf("no sample for %s", c)
	return nil
}

func roundTrip(t *testing.T, r Record, order format.Order) Record {
	t.Helper()
	ctx := Context{Gen: r.Generation()}
	want, err := Bytes(r, ctx)
	if err != nil {
		t.Fatalf("Bytes(%s %s): %v", r.Class(), ctx.Gen, err)
	}
	e := format.NewEncoder(order, nil)
	if err := Write(e, r, ctx); err != nil {
		t.Fatalf("Write(%s %s): %v", r.Class(), ctx.Gen, err)
	}
	if int64(e.Len()) != want {
		t.Fatalf("%s %s: Bytes()=%d, Write emitted %d", r.Class(), ctx.Gen, want, e.Len())
	}
	got, err := Create(format.NewDecoder(order, e.Bytes(), 0), r.Class(), ctx)
	if err != nil {
		t.Fatalf("Create(%s %s): %v", r.Class(), ctx.Gen, err)
	}
	return got
}

func TestRoundTripEveryGeneration(t *testing.T) {
	long := strings.Repeat("x", format.MaxString-1)
	for _, k := range Kinds() {
		if k.Class == ClassTOC {
			continue // covered by package toc
		}
		for _, g := range k.Defined() {
			for _, s := range []string{"", "H1:LSC-DARM", long} {
				for _, order := range []format.Order{format.BigEndian, format.LittleEndian} {
					r := sample(t, k.Class, g, s)
					got := roundTrip(t, r, order)
					if !got.Equal(r) {
						t.Errorf("%s %s (len %d): round trip mismatch\n got %+v\nwant %+v", k.Name, g, len(s), got, r)
					}
				}
			}
		}
	}
}

func TestEndOfFrameScenario(t *testing.T) {
	r := &EndOfFrame{Gen: Gen3, Run: 5, Frame: 42}
	n, err := Bytes(r, Context{Gen: Gen3})
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("Bytes() = %d, want 8", n)
	}
	got := roundTrip(t, r, format.BigEndian).(*EndOfFrame)
	if got.Run != 5 || got.Frame != 42 {
		t.Fatalf("run/frame = %d/%d, want 5/42", got.Run, got.Frame)
	}
}

func TestDescriptionRecords(t *testing.T) {
	d := NewDescription("FrTest", ClassHistory, "test structure",
		Element{Name: "alpha", Type: "INT_4U", Comment: "first"},
		Element{Name: "beta", Type: "REAL_8", Comment: "second"},
		Element{Name: "gamma", Type: "STRING", Comment: "third"},
	)
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}

	e := format.NewEncoder(format.LittleEndian, nil)
	var spans []int
	for _, r := range d.Records(Gen6) {
		if err := Write(e, r, Context{Gen: Gen6}); err != nil {
			t.Fatal(err)
		}
		spans = append(spans, e.Len())
	}

	var sh *SH
	var ses []*SE
	start := 0
	for i, end := range spans {
		class := ClassSE
		if i == 0 {
			class = ClassSH
		}
		r, err := Create(format.NewDecoder(format.LittleEndian, e.Bytes()[start:end], int64(start)), class, Context{Gen: Gen6})
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			sh = r.(*SH)
		} else {
			ses = append(ses, r.(*SE))
		}
		start = end
	}

	got := DescriptionFrom(sh, ses)
	if !got.Equal(d) {
		t.Fatalf("reparsed description differs: %+v", got.Elements())
	}
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if got.Element(i).Name != name {
			t.Errorf("element %d = %q, want %q", i, got.Element(i).Name, name)
		}
	}
	if _, ok := got.Lookup("beta"); !ok {
		t.Error("Lookup(beta) failed")
	}
}

func TestRegisteredDescriptionsCarryHeader(t *testing.T) {
	for _, k := range Kinds() {
		for _, g := range k.Defined() {
			d, err := Describe(k.Class, g)
			if err != nil {
				t.Fatalf("Describe(%s, %s): %v", k.Name, g, err)
			}
			if d.Name() != k.Name || d.Class() != k.Class {
				t.Errorf("%s %s: description header %q/%d", k.Name, g, d.Name(), d.Class())
			}
			if d.Len() == 0 {
				t.Errorf("%s %s: empty description", k.Name, g)
			}
		}
	}
}

func TestGeneration5AliasesGeneration4(t *testing.T) {
	for _, k := range Kinds() {
		if k.Codec(Gen4) == nil {
			continue
		}
		if !k.Aliased(Gen5) {
			t.Errorf("%s: generation 5 is not an alias of generation 4", k.Name)
		}
	}
}

func TestAbsentInGeneration3(t *testing.T) {
	for _, c := range []ClassID{ClassEndOfFile, ClassDetector, ClassSimEvent, ClassEvent, ClassMsg, ClassTOC} {
		if _, err := Lookup(c, Gen3); !errors.Is(err, format.ErrUnknownStruct) {
			t.Errorf("Lookup(%s, v3) = %v, want ErrUnknownStruct", c, err)
		}
	}
	if _, err := Lookup(ClassID(200), Gen6); !errors.Is(err, format.ErrFormat) {
		t.Errorf("unregistered class: %v, want ErrFormat", err)
	}
}

// common clears fields that exist in only one of a and b's generations.
func common(r Record) Record {
	switch x := r.(type) {
	case *FrameH:
		c := *x
		c.Gen, c.LocalTime, c.DataQuality, c.SimEvent, c.Event = 0, 0, 0, Ptr{}, Ptr{}
		return &c
	case *EndOfFrame:
		c := *x
		c.Gen, c.ChkType, c.ChkSum, c.GTime = 0, 0, 0, GPSTime{}
		return &c
	case *EndOfFile:
		c := *x
		c.Gen, c.ChkType, c.ChkSum, c.ChkSumHeader, c.ChkSumFile = 0, 0, 0, 0, 0
		return &c
	case *Detector:
		c := *x
		c.Gen = 0
		c.Prefix, c.Longitude, c.Latitude = [2]byte{}, 0, 0
		c.LongitudeDMS, c.LatitudeDMS = DMS{}, DMS{}
		c.ArmXAltitude, c.ArmYAltitude, c.ArmXMidpoint, c.ArmYMidpoint, c.LocalTime = 0, 0, 0, 0, 0
		return &c
	case *SimEvent:
		c := x.clone(0)
		c.Params = nil
		return c
	case *AdcData:
		c := *x
		c.Gen, c.Phase = 0, 0
		return &c
	case *ProcData:
		c := x.clone(0)
		c.SampleRate, c.Type, c.SubType, c.TRange, c.Phase, c.FRange, c.BW, c.AuxParams = 0, 0, 0, 0, 0, 0, 0, nil
		return c
	case *Event:
		c := x.clone(0)
		c.Params = nil
		return c
	case *Msg:
		c := *x
		c.Gen, c.GTime = 0, GPSTime{}
		return &c
	case *RawData:
		c := *x
		c.Gen, c.FirstTable, c.LogMsg = 0, Ptr{}, Ptr{}
		return &c
	case *Summary:
		c := *x
		c.Gen, c.GTime = 0, GPSTime{}
		return &c
	case *Vect:
		c := x.clone(0)
		for i := range c.Dims {
			c.Dims[i].StartX = 0
		}
		return c
	}
	k, _ := KindOf(r.Class())
	return k.Retag(r, 0)
}

func TestPromoteDemotePreservesCommonFields(t *testing.T) {
	for _, k := range Kinds() {
		for _, g := range k.Defined() {
			next, ok := g.Next()
			if !ok || k.Codec(next) == nil {
				continue
			}
			r := sample(t, k.Class, g, "name")
			up, err := Promote(r, next, Context{Gen: g})
			if err != nil {
				t.Fatalf("Promote(%s %s→%s): %v", k.Name, g, next, err)
			}
			if up.Generation() != next || up.Class() != k.Class {
				t.Fatalf("Promote(%s): got %s %s", k.Name, up.Class(), up.Generation())
			}
			roundTrip(t, up, format.BigEndian)
			down, err := Demote(up, g, Context{Gen: next})
			if err != nil {
				t.Fatalf("Demote(%s %s→%s): %v", k.Name, next, g, err)
			}
			if down.Generation() != g {
				t.Fatalf("Demote(%s) generation = %s", k.Name, down.Generation())
			}
			if !common(down).Equal(common(r)) {
				t.Errorf("%s %s→%s→%s lost fields\n got %+v\nwant %+v", k.Name, g, next, g, down, r)
			}
		}
	}
}

func TestDetectorPositionSurvivesMigration(t *testing.T) {
	r := sample(t, ClassDetector, Gen5, "LHO").(*Detector)
	up, err := Promote(r, Gen6, Context{Gen: Gen5})
	if err != nil {
		t.Fatal(err)
	}
	d := up.(*Detector)
	if d.Prefix != [2]byte{'L', 'H'} {
		t.Errorf("prefix = %q", d.Prefix[:])
	}
	back := DMSFromRadians(d.Longitude)
	if back.Deg != r.LongitudeDMS.Deg || back.Min != r.LongitudeDMS.Min {
		t.Errorf("longitude %v → %v", r.LongitudeDMS, back)
	}
}

func TestPromoteUsesFrameDefaults(t *testing.T) {
	frame := &FrameH{Gen: Gen8, GTime: GPSTime{Sec: 1234567890, Nano: 500}}
	up, err := Promote(&EndOfFrame{Gen: Gen7, Run: 1, Frame: 2, ChkType: 1, ChkSum: 3}, Gen8, Context{Gen: Gen7, Frame: frame})
	if err != nil {
		t.Fatal(err)
	}
	eof := up.(*EndOfFrame)
	if eof.GTime != frame.GTime || eof.ChkSum != 0 {
		t.Fatalf("promoted trailer = %+v", eof)
	}
}

func TestAdcTimeOffsetMigration(t *testing.T) {
	tests := []struct {
		s    int32
		n    uint32
		want float64
	}{
		{0, 0, 0},
		{3, 5, 3.000000005},
		{-1, 500000000, -0.5},
		{0, 999999999, 0.999999999},
	}
	for _, tt := range tests {
		r := &AdcData{Gen: Gen5, Name: "H1:PEM", TimeOffsetS: tt.s, TimeOffsetN: tt.n}
		up, err := Promote(r, Gen6, Context{Gen: Gen5})
		if err != nil {
			t.Fatal(err)
		}
		adc := up.(*AdcData)
		if math.Abs(adc.TimeOffset-tt.want) > 1e-12 || adc.TimeOffsetS != 0 || adc.TimeOffsetN != 0 {
			t.Errorf("%d.%09d promoted to %v (s=%d n=%d)", tt.s, tt.n, adc.TimeOffset, adc.TimeOffsetS, adc.TimeOffsetN)
		}
		down, err := Demote(up, Gen5, Context{Gen: Gen6})
		if err != nil {
			t.Fatal(err)
		}
		if !down.Equal(r) {
			t.Errorf("%d.%09d came back as %+v", tt.s, tt.n, down)
		}
	}
}

func TestProcDataPromotionIsTimeSeries(t *testing.T) {
	r := sample(t, ClassProcData, Gen5, "H1:CAL").(*ProcData)
	up, err := Promote(r, Gen6, Context{Gen: Gen5})
	if err != nil {
		t.Fatal(err)
	}
	p := up.(*ProcData)
	if p.Type != ProcTimeSeries || math.Abs(p.TimeOffset-2.25) > 1e-12 || p.SampleRate != 0 {
		t.Fatalf("promoted = %+v", p)
	}
	got := roundTrip(t, p, format.LittleEndian).(*ProcData)
	if !got.Equal(p) {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestMsgPromotionTakesFrameTime(t *testing.T) {
	frame := &FrameH{Gen: Gen6, GTime: GPSTime{Sec: 1187008882, Nano: 400000000}}
	up, err := Promote(&Msg{Gen: Gen5, Alarm: "lock", Message: "lost lock", Severity: 4}, Gen6, Context{Gen: Gen5, Frame: frame})
	if err != nil {
		t.Fatal(err)
	}
	if m := up.(*Msg); m.GTime != frame.GTime || m.Alarm != "lock" {
		t.Fatalf("promoted = %+v", m)
	}
}

func TestEventParameterWidth(t *testing.T) {
	r := &Event{Gen: Gen7, Name: "burst", Params: []Param{{Name: "freq", Value: 0.1}}}
	down, err := Demote(r, Gen6, Context{Gen: Gen7})
	if err != nil {
		t.Fatal(err)
	}
	got := roundTrip(t, down, format.BigEndian).(*Event)
	if got.Params[0].Value != float64(float32(0.1)) {
		t.Fatalf("REAL_4 parameter = %v", got.Params[0].Value)
	}
	wide := roundTrip(t, r, format.BigEndian).(*Event)
	if wide.Params[0].Value != 0.1 {
		t.Fatalf("REAL_8 parameter = %v", wide.Params[0].Value)
	}
}

func TestUnsupportedMigration(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"end of file to v3", func() error {
			_, err := Demote(&EndOfFile{Gen: Gen4}, Gen3, Context{Gen: Gen4})
			return err
		}},
		{"detector to v3", func() error {
			_, err := Demote(&Detector{Gen: Gen4}, Gen3, Context{Gen: Gen4})
			return err
		}},
		{"promote two steps", func() error {
			_, err := Promote(&History{Gen: Gen4}, Gen6, Context{Gen: Gen4})
			return err
		}},
		{"promote past newest", func() error {
			_, err := Promote(&History{Gen: Gen8}, Gen8+1, Context{Gen: Gen8})
			return err
		}},
		{"wide instance", func() error {
			_, err := Demote(&History{Gen: Gen6, Next: Ptr{Class: ClassHistory, Instance: 70000}}, Gen5, Context{Gen: Gen6})
			return err
		}},
		{"negative run", func() error {
			_, err := Demote(&EndOfFrame{Gen: Gen6, Run: -1}, Gen5, Context{Gen: Gen6})
			return err
		}},
		{"large file", func() error {
			_, err := Demote(&EndOfFile{Gen: Gen6, NBytes: 1 << 33}, Gen5, Context{Gen: Gen6})
			return err
		}},
		{"negative adc offset to v3", func() error {
			_, err := Demote(&AdcData{Gen: Gen4, TimeOffsetS: -1}, Gen3, Context{Gen: Gen4})
			return err
		}},
		{"negative proc offset", func() error {
			_, err := Demote(&ProcData{Gen: Gen6, TimeOffset: -0.5}, Gen5, Context{Gen: Gen6})
			return err
		}},
		{"wide adc detector", func() error {
			_, err := Demote(&AdcData{Gen: Gen6, Detector: Ptr{Class: ClassDetector, Instance: 1 << 20}}, Gen5, Context{Gen: Gen6})
			return err
		}},
		{"event to v3", func() error {
			_, err := Demote(&Event{Gen: Gen4}, Gen3, Context{Gen: Gen4})
			return err
		}},
		{"message to v3", func() error {
			_, err := Demote(&Msg{Gen: Gen4}, Gen3, Context{Gen: Gen4})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, format.ErrUnsupportedMigration) {
				t.Fatalf("err = %v, want ErrUnsupportedMigration", err)
			}
		})
	}
}

func TestAliasMigrationRetags(t *testing.T) {
	r := sample(t, ClassHistory, Gen6, "h")
	up, err := Promote(r, Gen7, Context{Gen: Gen6})
	if err != nil {
		t.Fatal(err)
	}
	if up == r {
		t.Fatal("alias promotion returned the same record")
	}
	if up.Generation() != Gen7 || !common(up).Equal(common(r)) {
		t.Fatalf("alias promotion = %+v", up)
	}
}

func TestGenerationMismatchRejected(t *testing.T) {
	e := format.NewEncoder(format.BigEndian, nil)
	err := Write(e, &History{Gen: Gen4}, Context{Gen: Gen6})
	if !errors.Is(err, format.ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestCreateRejectsTrailingBytes(t *testing.T) {
	e := format.NewEncoder(format.BigEndian, nil)
	if err := Write(e, &EndOfFrame{Gen: Gen4, Run: 1, Frame: 1}, Context{Gen: Gen4}); err != nil {
		t.Fatal(err)
	}
	buf := append(e.Bytes(), 0)
	_, err := Create(format.NewDecoder(format.BigEndian, buf, 100), ClassEndOfFrame, Context{Gen: Gen4})
	var fe *format.Error
	if !errors.As(err, &fe) || !errors.Is(err, format.ErrFormat) {
		t.Fatalf("err = %v, want *format.Error wrapping ErrFormat", err)
	}
	if fe.Offset != 108 || fe.Class != uint16(ClassEndOfFrame) {
		t.Errorf("offset/class = %d/%d, want 108/%d", fe.Offset, fe.Class, ClassEndOfFrame)
	}
}

func TestCreateTruncated(t *testing.T) {
	e := format.NewEncoder(format.BigEndian, nil)
	if err := Write(e, sample(t, ClassFrameH, Gen6, "frame"), Context{Gen: Gen6}); err != nil {
		t.Fatal(err)
	}
	buf := e.Bytes()[:e.Len()-3]
	_, err := Create(format.NewDecoder(format.BigEndian, buf, 0), ClassFrameH, Context{Gen: Gen6})
	if !errors.Is(err, format.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestVectCompression(t *testing.T) {
	raw := bytes.Repeat([]byte{0, 0, 128, 63}, 256) // 256 float32 ones
	v, err := NewVect(Gen8, "H1:STRAIN", Vect4R, raw, Dim{DX: 1.0 / 16384, UnitX: "s"}, CompressGzip)
	if err != nil {
		t.Fatal(err)
	}
	if v.NData != 256 || v.Dims[0].NX != 256 {
		t.Fatalf("nData/nx = %d/%d", v.NData, v.Dims[0].NX)
	}
	if len(v.Data) >= len(raw) {
		t.Errorf("compressed %d bytes to %d", len(raw), len(v.Data))
	}
	got := roundTrip(t, v, format.LittleEndian).(*Vect)
	out, err := got.Expand()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("expanded payload differs")
	}

	if _, err := NewVect(Gen8, "x", Vect4R, raw[:3], Dim{}, CompressRaw); !errors.Is(err, format.ErrFormat) {
		t.Errorf("odd payload: %v", err)
	}
	bad := &Vect{Gen: Gen8, Compress: CompressGzip, Data: []byte("not gzip")}
	if _, err := bad.Expand(); !errors.Is(err, format.ErrFormat) {
		t.Errorf("corrupt payload: %v", err)
	}
}

func TestVectOversizedPayloadCount(t *testing.T) {
	e := format.NewEncoder(format.BigEndian, nil)
	e.PutString("v")
	e.PutU16(0)
	e.PutU16(Vect1U)
	e.PutU64(10)
	e.PutU64(1 << 40)
	_, err := Create(format.NewDecoder(format.BigEndian, e.Bytes(), 0), ClassVect, Context{Gen: Gen6})
	if !errors.Is(err, format.ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestVectNarrowCountOverflow(t *testing.T) {
	tests := []struct {
		name string
		v    *Vect
	}{
		{"nData", &Vect{Gen: Gen4, Name: "v", Type: Vect1U, NData: 1 << 32}},
		{"nx", &Vect{Gen: Gen5, Name: "v", Type: Vect1U, Dims: []Dim{{NX: 1 << 33}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := format.NewEncoder(format.BigEndian, nil)
			if err := Write(e, tt.v, Context{Gen: tt.v.Gen}); !errors.Is(err, format.ErrOutOfBounds) {
				t.Fatalf("err = %v, want ErrOutOfBounds", err)
			}
		})
	}

	wide := &Vect{Gen: Gen6, Name: "v", Type: Vect1U, NData: 1 << 32}
	e := format.NewEncoder(format.BigEndian, nil)
	if err := Write(e, wide, Context{Gen: Gen6}); err != nil {
		t.Fatalf("generation 6 rejected a wide count: %v", err)
	}
	if _, err := Demote(wide, Gen5, Context{Gen: Gen6}); !errors.Is(err, format.ErrUnsupportedMigration) {
		t.Fatalf("demote err = %v, want ErrUnsupportedMigration", err)
	}
}

func TestGPSTime(t *testing.T) {
	g := GPSTime{Sec: 10, Nano: 900000000}
	if got := g.Add(0.2); got != (GPSTime{Sec: 11, Nano: 100000000}) {
		t.Errorf("Add = %v", got)
	}
	if !g.Before(GPSTime{Sec: 11}) || (GPSTime{Sec: 11}).Before(g) {
		t.Error("Before ordering wrong")
	}
	if got := (GPSTime{}).Time().Format("2006-01-02"); got != "1980-01-06" {
		t.Errorf("epoch = %s", got)
	}
	if got := GPSFromTime(g.Time()); got != g {
		t.Errorf("GPSFromTime(Time()) = %v, want %v", got, g)
	}
	if got := GPSFromTime(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)); got != (GPSTime{}) {
		t.Errorf("GPSFromTime before epoch = %v", got)
	}
}

func TestParseGeneration(t *testing.T) {
	for in, want := range map[string]Generation{"6": Gen6, "v8": Gen8, "3": Gen3} {
		g, err := ParseGeneration(in)
		if err != nil || g != want {
			t.Errorf("ParseGeneration(%q) = %v, %v", in, g, err)
		}
	}
	for _, in := range []string{"2", "9", "x"} {
		if _, err := ParseGeneration(in); err == nil {
			t.Errorf("ParseGeneration(%q) succeeded", in)
		}
	}
}
