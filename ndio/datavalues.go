/*
   This file handles the element types of channel data and routines that
   read and convert elements within a slice of bytes.
*/

package ndio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// DataType identifies the element type of a channel, e.g., a uint8 or a float32.
// The zero value T_unset means no type has been declared.
type DataType uint8

const (
	T_unset DataType = iota
	T_uint8
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

var typeBytes = map[DataType]int{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// Bytes returns the # of bytes per element, e.g., 2 for T_uint16.  Zero is
// returned for T_unset.
func (t DataType) Bytes() int {
	return typeBytes[t]
}

func (t DataType) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return "unset"
}

// ParseDataType returns the DataType for a channel datatype name like "uint8".
func ParseDataType(name string) (DataType, error) {
	for t, typeName := range typeNames {
		if typeName == name {
			return t, nil
		}
	}
	return T_unset, fmt.Errorf("unknown data type %q", name)
}

// MarshalJSON implements the json.Marshaler interface.
func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	dt, err := ParseDataType(name)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

func (t DataType) isFloat() bool {
	return t == T_float32 || t == T_float64
}

func (t DataType) isSigned() bool {
	switch t {
	case T_int8, T_int16, T_int32, T_int64:
		return true
	}
	return false
}

// element is an intermediate for numeric conversion between types.
type element struct {
	u uint64 // two's complement bits for integer types
	f float64
}

func readElement(t DataType, b []byte) element {
	switch t {
	case T_uint8:
		return element{u: uint64(b[0])}
	case T_int8:
		return element{u: uint64(int64(int8(b[0])))}
	case T_uint16:
		return element{u: uint64(binary.LittleEndian.Uint16(b))}
	case T_int16:
		return element{u: uint64(int64(int16(binary.LittleEndian.Uint16(b))))}
	case T_uint32:
		return element{u: uint64(binary.LittleEndian.Uint32(b))}
	case T_int32:
		return element{u: uint64(int64(int32(binary.LittleEndian.Uint32(b))))}
	case T_uint64, T_int64:
		return element{u: binary.LittleEndian.Uint64(b)}
	case T_float32:
		return element{f: float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}
	case T_float64:
		return element{f: math.Float64frombits(binary.LittleEndian.Uint64(b))}
	}
	return element{}
}

// float returns the element value as a float64 given its source type.
func (e element) float(src DataType) float64 {
	switch {
	case src.isFloat():
		return e.f
	case src.isSigned():
		return float64(int64(e.u))
	default:
		return float64(e.u)
	}
}

// bits returns the two's complement bits of the element truncated toward zero
// when the source is floating point.
func (e element) bits(src DataType) uint64 {
	if !src.isFloat() {
		return e.u
	}
	if e.f < 0 {
		return uint64(int64(e.f))
	}
	if e.f >= math.MaxInt64 {
		return uint64(e.f)
	}
	return uint64(int64(e.f))
}

// writeElement stores the element of type src into b as type dst.  Integer
// destinations keep only the low-order bytes, i.e., a wrapping narrowing cast.
func writeElement(dst DataType, b []byte, src DataType, e element) {
	switch dst {
	case T_float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(e.float(src))))
	case T_float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(e.float(src)))
	default:
		bits := e.bits(src)
		switch typeBytes[dst] {
		case 1:
			b[0] = uint8(bits)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(bits))
		case 4:
			binary.LittleEndian.PutUint32(b, uint32(bits))
		case 8:
			binary.LittleEndian.PutUint64(b, bits)
		}
	}
}
