package raster

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the element type of a raster band.
type DataType int

const (
	Unknown DataType = iota
	Byte
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

var dataTypeNames = [...]string{"Unknown", "Byte", "Int16", "UInt16", "Int32", "UInt32", "Float32", "Float64"}

func (d DataType) String() string {
	if d < 0 || int(d) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return dataTypeNames[d]
}

// Size returns the element size in bytes, or 0 for an unknown type.
func (d DataType) Size() int {
	switch d {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Element decodes the i-th element of buf.
func (d DataType) Element(buf []byte, i int, bo binary.ByteOrder) float64 {
	off := i * d.Size()
	switch d {
	case Byte:
		return float64(buf[off])
	case Int16:
		return float64(int16(bo.Uint16(buf[off:])))
	case UInt16:
		return float64(bo.Uint16(buf[off:]))
	case Int32:
		return float64(int32(bo.Uint32(buf[off:])))
	case UInt32:
		return float64(bo.Uint32(buf[off:]))
	case Float32:
		return float64(math.Float32frombits(bo.Uint32(buf[off:])))
	case Float64:
		return math.Float64frombits(bo.Uint64(buf[off:]))
	default:
		return math.NaN()
	}
}

// PutElement encodes v as the i-th element of buf.
func (d DataType) PutElement(buf []byte, i int, bo binary.ByteOrder, v float64) {
	off := i * d.Size()
	switch d {
	case Byte:
		buf[off] = uint8(v)
	case Int16:
		bo.PutUint16(buf[off:], uint16(int16(v)))
	case UInt16:
		bo.PutUint16(buf[off:], uint16(v))
	case Int32:
		bo.PutUint32(buf[off:], uint32(int32(v)))
	case UInt32:
		bo.PutUint32(buf[off:], uint32(v))
	case Float32:
		bo.PutUint32(buf[off:], math.Float32bits(float32(v)))
	case Float64:
		bo.PutUint64(buf[off:], math.Float64bits(v))
	}
}
