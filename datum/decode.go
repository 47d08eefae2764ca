package datum

import (
	"encoding/binary"
	"math"
	"time"
)

// Scalar is the closed set of native types a binary result cell decodes to.
type Scalar interface {
	int16 | int32 | int64 | uint16 | uint32 | uint64 |
		float32 | float64 | bool | string | []byte | time.Time
}

// Decode interprets one binary-format result cell as T.
//
// Fixed-width numerics require the raw length to equal the type's byte width
// and are read big endian; any mismatch, like a null cell, yields the zero
// value. Text is converted from the client encoding, bytes alias the cell
// storage without copying, and booleans read the first byte without
// consulting the null flag, so a null cell is indistinguishable from false.
// Timestamps count microseconds since 2000-01-01 00:00:00 and keep
// millisecond precision. No input is ever reported as an error.
func Decode[T Scalar](raw []byte, null bool) T {
	var v T
	switch p := any(&v).(type) {
	case *int16:
		if !null && len(raw) == 2 {
			*p = int16(binary.BigEndian.Uint16(raw))
		}
	case *int32:
		if !null && len(raw) == 4 {
			*p = int32(binary.BigEndian.Uint32(raw))
		}
	case *int64:
		if !null && len(raw) == 8 {
			*p = int64(binary.BigEndian.Uint64(raw))
		}
	case *uint16:
		if !null && len(raw) == 2 {
			*p = binary.BigEndian.Uint16(raw)
		}
	case *uint32:
		if !null && len(raw) == 4 {
			*p = binary.BigEndian.Uint32(raw)
		}
	case *uint64:
		if !null && len(raw) == 8 {
			*p = binary.BigEndian.Uint64(raw)
		}
	case *float32:
		if !null && len(raw) == 4 {
			*p = math.Float32frombits(binary.BigEndian.Uint32(raw))
		}
	case *float64:
		if !null && len(raw) == 8 {
			*p = math.Float64frombits(binary.BigEndian.Uint64(raw))
		}
	case *bool:
		*p = len(raw) > 0 && raw[0] != 0
	case *string:
		if !null {
			*p = DecodeText(raw)
		}
	case *[]byte:
		if !null {
			*p = raw
		}
	case *time.Time:
		// A null or short cell decodes as 0 microseconds, which lands on
		// the epoch itself rather than the zero time.
		usec := Decode[int64](raw, null)
		*p = timestampEpoch.Add(time.Duration(usec/1000) * time.Millisecond)
	}
	return v
}
