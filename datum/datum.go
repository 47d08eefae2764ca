package datum

import (
	"fmt"
	"time"

	"gopkg.in/inf.v0"
)

// Datum is one value of the closed set of argument types a command accepts.
// Every Datum encodes to exactly one (payload, format) parameter pair.
type Datum interface {
	Type() string
}

// DNull is the singleton NULL argument.
var DNull Datum = dNull{}

type DBool bool

func (d DBool) Type() string {
	return "bool"
}

type DInt int64

func (d DInt) Type() string {
	return "int"
}

type DFloat float64

func (d DFloat) Type() string {
	return "float"
}

type DDecimal struct {
	inf.Dec
}

func (d *DDecimal) Type() string {
	return "decimal"
}

type DString string

func (d DString) Type() string {
	return "string"
}

type DBytes string

func (d DBytes) Type() string {
	return "bytes"
}

type DTimestamp struct {
	time.Time
}

func (d DTimestamp) Type() string {
	return "timestamp"
}

type dNull struct{}

func (d dNull) Type() string {
	return "NULL"
}

// FromArg maps a plain Go argument onto the closed Datum set. Anything that
// is not bytes, text, a timestamp, or a known scalar falls back to its
// fmt.Sprint rendering, which keeps the original "anything convertible to
// text" contract.
func FromArg(v interface{}) Datum {
	switch x := v.(type) {
	case Datum:
		return x
	case []byte:
		return DBytes(x)
	case string:
		return DString(x)
	case time.Time:
		return DTimestamp{x}
	case bool:
		return DBool(x)
	case int:
		return DInt(x)
	case int16:
		return DInt(x)
	case int32:
		return DInt(x)
	case int64:
		return DInt(x)
	case uint16:
		return DInt(x)
	case uint32:
		return DInt(x)
	case float32:
		return DFloat(x)
	case float64:
		return DFloat(x)
	case *inf.Dec:
		return &DDecimal{Dec: *x}
	case fmt.Stringer:
		return DString(x.String())
	default:
		return DString(fmt.Sprint(x))
	}
}
