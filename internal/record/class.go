package record

import (
	"fmt"
	"time"

	"gwframe/internal/format"
)

// ClassID is the structure identifier stored in every structure header. It
// is stable across generations for the same logical structure.
type ClassID uint16

const (
	ClassSH         ClassID = 1
	ClassSE         ClassID = 2
	ClassFrameH     ClassID = 3
	ClassAdcData    ClassID = 4
	ClassDetector   ClassID = 5
	ClassEndOfFile  ClassID = 6
	ClassEndOfFrame ClassID = 7
	ClassEvent      ClassID = 8
	ClassHistory    ClassID = 9
	ClassMsg        ClassID = 10
	ClassProcData   ClassID = 11
	ClassRawData    ClassID = 12
	ClassSerData    ClassID = 13
	ClassSimData    ClassID = 14
	ClassSimEvent   ClassID = 15
	ClassStatData   ClassID = 16
	ClassSummary    ClassID = 17
	ClassTable      ClassID = 18
	ClassTOC        ClassID = 19
	ClassVect       ClassID = 20
)

var classNames = map[ClassID]string{
	ClassSH:         "FrSH",
	ClassSE:         "FrSE",
	ClassFrameH:     "FrameH",
	ClassAdcData:    "FrAdcData",
	ClassDetector:   "FrDetector",
	ClassEndOfFile:  "FrEndOfFile",
	ClassEndOfFrame: "FrEndOfFrame",
	ClassEvent:      "FrEvent",
	ClassHistory:    "FrHistory",
	ClassMsg:        "FrMsg",
	ClassProcData:   "FrProcData",
	ClassRawData:    "FrRawData",
	ClassSerData:    "FrSerData",
	ClassSimData:    "FrSimData",
	ClassSimEvent:   "FrSimEvent",
	ClassStatData:   "FrStatData",
	ClassSummary:    "FrSummary",
	ClassTable:      "FrTable",
	ClassTOC:        "FrTOC",
	ClassVect:       "FrVect",
}

func (c ClassID) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", uint16(c))
}

// GPSTime is a GPS time stamp: seconds and nanoseconds since the GPS epoch.
type GPSTime struct {
	Sec  uint32
	Nano uint32
}

// GPSTimeBytes is the encoded width of a GPSTime.
const GPSTimeBytes = 2 * format.Int4Bytes

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Time converts t to UTC, ignoring leap seconds.
func (t GPSTime) Time() time.Time {
	return gpsEpoch.Add(time.Duration(t.Sec)*time.Second + time.Duration(t.Nano))
}

// GPSFromTime converts a UTC time to GPS time, ignoring leap seconds.
// Times before the GPS epoch map to the zero value.
func GPSFromTime(t time.Time) GPSTime {
	d := t.Sub(gpsEpoch)
	if d < 0 {
		return GPSTime{}
	}
	return GPSTime{Sec: uint32(d / time.Second), Nano: uint32(d % time.Second)}
}

// Add returns t shifted by d seconds.
func (t GPSTime) Add(d float64) GPSTime {
	ns := int64(t.Sec)*1e9 + int64(t.Nano) + int64(d*1e9)
	if ns < 0 {
		return GPSTime{}
	}
	return GPSTime{Sec: uint32(ns / 1e9), Nano: uint32(ns % 1e9)}
}

// Before reports whether t precedes u.
func (t GPSTime) Before(u GPSTime) bool {
	return t.Sec < u.Sec || (t.Sec == u.Sec && t.Nano < u.Nano)
}

func (t GPSTime) String() string { return fmt.Sprintf("%d.%09d", t.Sec, t.Nano) }

func putTime(e *format.Encoder, t GPSTime) {
	e.PutU32(t.Sec)
	e.PutU32(t.Nano)
}

func readTime(d *format.Decoder) GPSTime {
	return GPSTime{Sec: d.U32(), Nano: d.U32()}
}

// Ptr is a PTR_STRUCT cross reference to another structure of the same
// frame, identified by class and instance number. The zero value is null.
type Ptr struct {
	Class    ClassID
	Instance uint32
}

// IsNull reports whether p references nothing.
func (p Ptr) IsNull() bool { return p.Class == 0 }

func (p Ptr) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s#%d", p.Class, p.Instance)
}

func putPtr(e *format.Encoder, g Generation, p Ptr) {
	e.PutU16(uint16(p.Class))
	if g < Gen6 {
		e.PutU16(uint16(p.Instance))
	} else {
		e.PutU32(p.Instance)
	}
}

func readPtr(d *format.Decoder, g Generation) Ptr {
	p := Ptr{Class: ClassID(d.U16())}
	if g < Gen6 {
		p.Instance = uint32(d.U16())
	} else {
		p.Instance = d.U32()
	}
	return p
}

// demotePtr checks that p's instance fits the narrower generation 3-5 width.
func demotePtr(p Ptr, field string) error {
	if p.Instance > 0xffff {
		return format.Errorf(format.ErrUnsupportedMigration, "%s instance %d exceeds INT_2U", field, p.Instance)
	}
	return nil
}
