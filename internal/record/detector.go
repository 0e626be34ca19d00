package record

import (
	"math"

	"gwframe/internal/format"
)

// DMS is an angle in degrees, minutes and seconds, as stored by
// generation 4-5 detector structures.
type DMS struct {
	Deg int16
	Min int16
	Sec float32
}

// Radians converts a to radians.
func (a DMS) Radians() float64 {
	sign := 1.0
	if a.Deg < 0 || a.Min < 0 || a.Sec < 0 {
		sign = -1
	}
	deg := math.Abs(float64(a.Deg)) + math.Abs(float64(a.Min))/60 + math.Abs(float64(a.Sec))/3600
	return sign * deg * math.Pi / 180
}

// DMSFromRadians converts rad to degrees, minutes and seconds. The sign is
// carried on every non-zero component.
func DMSFromRadians(rad float64) DMS {
	deg := rad * 180 / math.Pi
	sign := 1.0
	if deg < 0 {
		sign, deg = -1, -deg
	}
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	s := ((deg-d)*60 - m) * 60
	return DMS{Deg: int16(sign * d), Min: int16(sign * m), Sec: float32(sign * s)}
}

// Detector is an FrDetector structure describing an interferometer site.
//
// Generations 4-5 store the position as degrees/minutes/seconds
// (LongitudeDMS, LatitudeDMS) and no prefix, arm altitudes, midpoints or
// local time. Generation 6 onward stores radians. Generation 3 has no
// detector structure.
type Detector struct {
	Gen          Generation
	Name         string
	Prefix       [2]byte
	Longitude    float64
	Latitude     float64
	LongitudeDMS DMS
	LatitudeDMS  DMS
	Elevation    float32
	ArmXAzimuth  float32
	ArmYAzimuth  float32
	ArmXAltitude float32
	ArmYAltitude float32
	ArmXMidpoint float32
	ArmYMidpoint float32
	LocalTime    int32
	Next         Ptr
}

func (r *Detector) Class() ClassID         { return ClassDetector }
func (r *Detector) Generation() Generation { return r.Gen }

func (r *Detector) Equal(o Record) bool {
	x, ok := o.(*Detector)
	return ok && *r == *x
}

// defaultPrefix derives a channel prefix from the detector name.
func defaultPrefix(name string) [2]byte {
	p := [2]byte{' ', ' '}
	copy(p[:], name)
	return p
}

func init() {
	k := Register(&Kind{
		Class:   ClassDetector,
		Name:    "FrDetector",
		Comment: "Detector Data Structure",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*Detector)
			c.Gen = g
			return &c
		},
	})

	gen4 := &Codec{
		Description: fields(
			el("name", "STRING", "Instrument name"),
			el("longitudeD", "INT_2S", "Detector vertex longitude, degrees"),
			el("longitudeM", "INT_2S", "Detector vertex longitude, minutes"),
			el("longitudeS", "REAL_4", "Detector vertex longitude, seconds"),
			el("latitudeD", "INT_2S", "Detector vertex latitude, degrees"),
			el("latitudeM", "INT_2S", "Detector vertex latitude, minutes"),
			el("latitudeS", "REAL_4", "Detector vertex latitude, seconds"),
			el("elevation", "REAL_4", "Vertex elevation, meters"),
			el("armXazimuth", "REAL_4", "Orientation of X arm, radians East of North"),
			el("armYazimuth", "REAL_4", "Orientation of Y arm, radians East of North"),
			el("next", "PTR_STRUCT(FrDetector *)", "Next detector in the linked list"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			return format.StringBytes(r.(*Detector).Name) + 2*(2*format.Int2Bytes+format.Real4Bytes) +
				3*format.Real4Bytes + ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Detector)
			e.PutString(x.Name)
			for _, a := range []DMS{x.LongitudeDMS, x.LatitudeDMS} {
				e.PutI16(a.Deg)
				e.PutI16(a.Min)
				e.PutF32(a.Sec)
			}
			e.PutF32(x.Elevation)
			e.PutF32(x.ArmXAzimuth)
			e.PutF32(x.ArmYAzimuth)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Detector{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.LongitudeDMS = DMS{Deg: d.I16(), Min: d.I16(), Sec: d.F32()}
			x.LatitudeDMS = DMS{Deg: d.I16(), Min: d.I16(), Sec: d.F32()}
			x.Elevation = d.F32()
			x.ArmXAzimuth = d.F32()
			x.ArmYAzimuth = d.F32()
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
	}
	gen6 := &Codec{
		Description: fields(
			el("name", "STRING", "Instrument name"),
			el("prefix", "CHAR[2]", "Channel prefix for this detector"),
			el("longitude", "REAL_8", "Detector vertex longitude, radians"),
			el("latitude", "REAL_8", "Detector vertex latitude, radians"),
			el("elevation", "REAL_4", "Vertex elevation, meters"),
			el("armXazimuth", "REAL_4", "Orientation of X arm, radians East of North"),
			el("armYazimuth", "REAL_4", "Orientation of Y arm, radians East of North"),
			el("armXaltitude", "REAL_4", "Altitude angle of X arm, radians"),
			el("armYaltitude", "REAL_4", "Altitude angle of Y arm, radians"),
			el("armXmidpoint", "REAL_4", "Vertex to middle of X arm distance, meters"),
			el("armYmidpoint", "REAL_4", "Vertex to middle of Y arm distance, meters"),
			el("localTime", "INT_4S", "Local seasonal time offset from UTC in seconds"),
			el("next", "PTR_STRUCT(FrDetector *)", "Next detector in the linked list"),
		),
		Bytes: func(r Record, ctx Context) int64 {
			return format.StringBytes(r.(*Detector).Name) + 2*format.CharBytes + 2*format.Real8Bytes +
				7*format.Real4Bytes + format.Int4Bytes + ctx.Gen.PtrBytes()
		},
		Encode: func(e *format.Encoder, r Record, ctx Context) {
			x := r.(*Detector)
			e.PutString(x.Name)
			e.PutBytes(x.Prefix[:])
			e.PutF64(x.Longitude)
			e.PutF64(x.Latitude)
			e.PutF32(x.Elevation)
			e.PutF32(x.ArmXAzimuth)
			e.PutF32(x.ArmYAzimuth)
			e.PutF32(x.ArmXAltitude)
			e.PutF32(x.ArmYAltitude)
			e.PutF32(x.ArmXMidpoint)
			e.PutF32(x.ArmYMidpoint)
			e.PutI32(x.LocalTime)
			putPtr(e, ctx.Gen, x.Next)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			x := &Detector{Gen: ctx.Gen}
			x.Name = d.ReadString()
			x.Prefix[0] = d.U8()
			x.Prefix[1] = d.U8()
			x.Longitude = d.F64()
			x.Latitude = d.F64()
			x.Elevation = d.F32()
			x.ArmXAzimuth = d.F32()
			x.ArmYAzimuth = d.F32()
			x.ArmXAltitude = d.F32()
			x.ArmYAltitude = d.F32()
			x.ArmXMidpoint = d.F32()
			x.ArmYMidpoint = d.F32()
			x.LocalTime = d.I32()
			x.Next = readPtr(d, ctx.Gen)
			return x
		},
		Promote: func(prev Record, ctx Context) (Record, error) {
			p := prev.(*Detector)
			return &Detector{
				Gen:         ctx.Gen,
				Name:        p.Name,
				Prefix:      defaultPrefix(p.Name),
				Longitude:   p.LongitudeDMS.Radians(),
				Latitude:    p.LatitudeDMS.Radians(),
				Elevation:   p.Elevation,
				ArmXAzimuth: p.ArmXAzimuth,
				ArmYAzimuth: p.ArmYAzimuth,
				Next:        p.Next,
			}, nil
		},
		Demote: func(r Record, ctx Context) (Record, error) {
			x := r.(*Detector)
			if err := demotePtr(x.Next, "next"); err != nil {
				return nil, err
			}
			return &Detector{
				Gen:          ctx.Gen,
				Name:         x.Name,
				LongitudeDMS: DMSFromRadians(x.Longitude),
				LatitudeDMS:  DMSFromRadians(x.Latitude),
				Elevation:    x.Elevation,
				ArmXAzimuth:  x.ArmXAzimuth,
				ArmYAzimuth:  x.ArmYAzimuth,
				Next:         x.Next,
			}, nil
		},
	}

	k.Define(Gen4, gen4).Define(Gen6, gen6)
}
