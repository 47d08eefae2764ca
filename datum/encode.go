package datum

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// http://www.postgresql.org/docs/9.5/static/protocol-overview.html#PROTOCOL-FORMAT-CODES
type Format int16

// Clients specify a format code for each transmitted parameter value and
// for each column of a query result. Text has format code zero, binary has
// format code one, and all other format codes are reserved for future definition.
const (
	FormatText   Format = 0
	FormatBinary Format = 1
)

// ClientEncoding is the single-byte charset negotiated at connection startup.
// Text parameters are submitted and text result cells interpreted in it.
const ClientEncoding = "WIN1251"

// timestampEpoch is the zero point of the binary timestamp encoding,
// measured in microseconds on the wire.
var timestampEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// timestampLayout is the textual form timestamp arguments are submitted in.
const timestampLayout = "2006-01-02 15:04:05"

// EncodeText converts s to the client encoding. Runes with no mapping are
// replaced with the charset's substitute byte rather than failing.
func EncodeText(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// DecodeText interprets raw client-encoding bytes as a string.
func DecodeText(raw []byte) string {
	out, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// EncodeParam renders d as one wire parameter: bytes keep their native
// binary layout, everything else goes over as client-encoded text.
func EncodeParam(d Datum) ([]byte, Format) {
	switch v := d.(type) {
	case DBytes:
		return []byte(v), FormatBinary
	case DString:
		return EncodeText(string(v)), FormatText
	case DTimestamp:
		return EncodeText(v.Format(timestampLayout)), FormatText
	case DBool:
		return EncodeText(strconv.FormatBool(bool(v))), FormatText
	case DInt:
		return strconv.AppendInt(nil, int64(v), 10), FormatText
	case DFloat:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 64), FormatText
	case *DDecimal:
		return EncodeText(v.Dec.String()), FormatText
	default:
		// DNull and anything unknown carry no payload; the command layer
		// rejects empty payloads.
		return nil, FormatText
	}
}

// EncodeBinary renders d in the binary result format the server uses for
// DataRow cells. It is the inverse of Decode and exists for backends and
// round-trip tests.
func EncodeBinary(d Datum) ([]byte, error) {
	switch v := d.(type) {
	case DBool:
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case DInt:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b, nil

	case DFloat:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(float64(v)))
		return b, nil

	case DString:
		return EncodeText(string(v)), nil

	case DBytes:
		return []byte(v), nil

	case DTimestamp:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.Sub(timestampEpoch).Microseconds()))
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported binary type %T", d)
	}
}
