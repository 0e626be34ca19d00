package record

import (
	"math"

	"gwframe/internal/format"
)

// AdcData is an FrAdcData structure: one digitized channel of the raw data
// set. Generation 3 stores the time offset as unsigned seconds and
// nanoseconds; generations 4 and 5 make the seconds signed; generation 6
// collapses both into TimeOffset and adds Phase. Detector is null in
// generation 3, which has no detector list.
type AdcData struct {
	Gen           Generation
	Name          string
	Comment       string
	ChannelGroup  uint32
	ChannelNumber uint32
	NBits         uint32
	Bias          float32
	Slope         float32
	Units         string
	SampleRate    float64
	TimeOffsetS   int32
	TimeOffsetN   uint32
	TimeOffset    float64
	FShift        float64
	Phase         float32
	DataValid     uint16

	Detector Ptr
	Data     Ptr
	Aux      Ptr
	Next     Ptr
}

func (r *AdcData) Class() ClassID         { return ClassAdcData }
func (r *AdcData) Generation() Generation { return r.Gen }

func (r *AdcData) Equal(o Record) bool {
	x, ok := o.(*AdcData)
	return ok && *r == *x
}

func adcHead(x *AdcData) int64 {
	return format.StringBytes(x.Name) + format.StringBytes(x.Comment) + 3*format.Int4Bytes +
		2*format.Real4Bytes + format.StringBytes(x.Units) + format.Real8Bytes
}

func putAdcHead(e *format.Encoder, x *AdcData) {
	e.PutString(x.Name)
	e.PutString(x.Comment)
	e.PutU32(x.ChannelGroup)
	e.PutU32(x.ChannelNumber)
	e.PutU32(x.NBits)
	e.PutF32(x.Bias)
	e.PutF32(x.Slope)
	e.PutString(x.Units)
	e.PutF64(x.SampleRate)
}

func readAdcHead(d *format.Decoder, x *AdcData) {
	x.Name = d.ReadString()
	x.Comment = d.ReadString()
	x.ChannelGroup = d.U32()
	x.ChannelNumber = d.U32()
	x.NBits = d.U32()
	x.Bias = d.F32()
	x.Slope = d.F32()
	x.Units = d.ReadString()
	x.SampleRate = d.F64()
}

func adcElems(group, number string) []Element {
	return []Element{
		el("name", "STRING", "Channel name"),
		el("comment", "STRING", "Comment"),
		el(group, "INT_4U", "Channel grouping number"),
		el(number, "INT_4U", "Channel number within the group"),
		el("nBits", "INT_4U", "Number of bits in the A/D output"),
		el("bias", "REAL_4", "DC bias on channel, units at ADC counts = 0"),
		el("slope", "REAL_4", "ADC calibration, units per count"),
		el("units", "STRING", "Units of slope and bias"),
		el("sampleRate", "REAL_8", "Data acquisition rate, samples per second"),
	}
}

var adcTail = []Element{
	el("data", "PTR_STRUCT(FrVect *)", "Digitized samples"),
	el("aux", "PTR_STRUCT(FrVect *)", "Auxiliary data"),
	el("next", "PTR_STRUCT(FrAdcData *)", "Next ADC channel"),
}

// splitOffset converts a fractional offset to whole seconds and nanoseconds.
func splitOffset(off float64) (int64, uint32) {
	s := math.Floor(off)
	n := math.Round((off - s) * 1e9)
	if n >= 1e9 {
		s, n = s+1, 0
	}
	return int64(s), uint32(n)
}

func init() {
	k := Register(&Kind{
		Class:   ClassAdcData,
		Name:    "FrAdcData",
		Comment: "ADC Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*AdcData)
			c.Gen = g
			return &c
		},
	})

	gen3 := &Codec{
		Description: fields(append(append(adcElems("crate", "channel"),
			el("timeOffsetS", "INT_4U", "Offset of the first sample from frame start, seconds"),
			el("timeOffsetN", "INT_4U", "Offset residual, nanoseconds"),
			el("fShift", "REAL_8", "Frequency shift of heterodyned data"),
			el("overRange", "INT_2U", "Non-zero if any sample is out of range"),
		), adcTail...)...),
		Bytes: func(r Record, ctx Context) int64 {
			return adcHead(r.(*AdcData)) + 2*format.Int4Bytes + format.Real8Bytes + format.Int2Bytes + 3*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*AdcData)
			putAdcHead(e, x)
			e.PutU32(uint32(x.TimeOffsetS))
			e.PutU32(x.TimeOffsetN)
			e.PutF64(x.FShift)
			e.PutU16(x.DataValid)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Aux)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &AdcData{Gen: ctx.Gen}
			readAdcHead(d, x)
			x.TimeOffsetS = int32(d.U32())
			x.TimeOffsetN = d.U32()
			x.FShift = d.F64()
			x.DataValid = d.U16()
			x.Data = readPtr(d, ctx.Gen)
			x.Aux = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}

	gen4 := &Codec{
		Description: fields(append(append(adcElems("channelGroup", "channelNumber"),
			el("timeOffsetS", "INT_4S", "Offset of the first sample from frame start, seconds"),
			el("timeOffsetN", "INT_4U", "Offset residual, nanoseconds"),
			el("fShift", "REAL_8", "Frequency shift of heterodyned data"),
			el("dataValid", "INT_2U", "Zero when the data is valid"),
			el("detector", "PTR_STRUCT(FrDetector *)", "Detector the channel belongs to"),
		), adcTail...)...),
		Bytes: func(r Record, ctx Context) int64 {
			return adcHead(r.(*AdcData)) + 2*format.Int4Bytes + format.Real8Bytes + format.Int2Bytes + 4*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*AdcData)
			putAdcHead(e, x)
			e.PutI32(x.TimeOffsetS)
			e.PutU32(x.TimeOffsetN)
			e.PutF64(x.FShift)
			e.PutU16(x.DataValid)
			putPtr(e, ctx.Gen, x.Detector)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Aux)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &AdcData{Gen: ctx.Gen}
			readAdcHead(d, x)
			x.TimeOffsetS = d.I32()
			x.TimeOffsetN = d.U32()
			x.FShift = d.F64()
			x.DataValid = d.U16()
			x.Detector = readPtr(d, ctx.Gen)
			x.Data = readPtr(d, ctx.Gen)
			x.Aux = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*AdcData)
			c.Gen = ctx.Gen
			c.Detector = Ptr{}
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*AdcData)
			if c.TimeOffsetS < 0 {
				return nil, format.Errorf(format.ErrUnsupportedMigration, "adc %q: negative time offset %d has no INT_4U form", c.Name, c.TimeOffsetS)
			}
			c.Gen = ctx.Gen
			c.Detector = Ptr{}
			return &c, nil
		},
	}

	gen6 := &Codec{
		Description: fields(append(append(adcElems("channelGroup", "channelNumber"),
			el("timeOffset", "REAL_8", "Offset of the first sample from frame start, seconds"),
			el("fShift", "REAL_8", "Frequency shift of heterodyned data"),
			el("phase", "REAL_4", "Phase of the heterodyne signal at the first sample, radians"),
			el("dataValid", "INT_2U", "Zero when the data is valid"),
			el("detector", "PTR_STRUCT(FrDetector *)", "Detector the channel belongs to"),
		), adcTail...)...),
		Bytes: func(r Record, ctx Context) int64 {
			return adcHead(r.(*AdcData)) + 2*format.Real8Bytes + format.Real4Bytes + format.Int2Bytes + 4*ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*AdcData)
			putAdcHead(e, x)
			e.PutF64(x.TimeOffset)
			e.PutF64(x.FShift)
			e.PutF32(x.Phase)
			e.PutU16(x.DataValid)
			putPtr(e, ctx.Gen, x.Detector)
			putPtr(e, ctx.Gen, x.Data)
			putPtr(e, ctx.Gen, x.Aux)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &AdcData{Gen: ctx.Gen}
			readAdcHead(d, x)
			x.TimeOffset = d.F64()
			x.FShift = d.F64()
			x.Phase = d.F32()
			x.DataValid = d.U16()
			x.Detector = readPtr(d, ctx.Gen)
			x.Data = readPtr(d, ctx.Gen)
			x.Aux = readPtr(d, ctx.Gen)
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			c := *prev.(*AdcData)
			c.Gen = ctx.Gen
			c.TimeOffset = float64(c.TimeOffsetS) + float64(c.TimeOffsetN)*1e-9
			c.TimeOffsetS, c.TimeOffsetN = 0, 0
			c.Phase = 0
			return &c, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			c := *r.(*AdcData)
			for _, p := range []Ptr{c.Detector, c.Data, c.Aux, c.Next} {
				if err := demotePtr(p, "adcData"); err != nil {
					return nil, err
				}
			}
			s, n := splitOffset(c.TimeOffset)
			if s < math.MinInt32 || s > math.MaxInt32 {
				return nil, format.Errorf(format.ErrUnsupportedMigration, "adc %q: time offset %g exceeds INT_4S", c.Name, c.TimeOffset)
			}
			c.Gen = ctx.Gen
			c.TimeOffsetS, c.TimeOffsetN = int32(s), n
			c.TimeOffset = 0
			c.Phase = 0
			return &c, nil
		},
	}

	k.Define(Gen3, gen3).Define(Gen4, gen4).Define(Gen6, gen6)
}
