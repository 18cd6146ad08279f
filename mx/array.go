package mx

import (
	"encoding/binary"
	"math"
)

// Array is the engine's description of one value.
//
// Data returns the element buffer in host byte order, column-major for 2-D
// arrays. The slice is borrowed: it stays valid only until the next
// operation on the connection that produced it, and callers must never
// write through it.
type Array interface {
	ClassID() ClassID
	Dimensions() []int
	Data() []byte
}

// Matrix is a writable real double matrix allocated through an engine's
// allocation primitive. Destroy releases the native memory; calling it more
// than once is a no-op.
type Matrix interface {
	Array
	Set(offset int, v float64)
	Destroy()
}

// LinearOffset maps (row, col) of a column-major array with the given row
// count to its element offset.
func LinearOffset(r, c, rows int) int {
	return c*rows + r
}

// SizeOf multiplies dims together and by elemSize. ok is false when a
// dimension is negative or the product does not fit in an int.
func SizeOf(dims []int, elemSize int) (n int, ok bool) {
	n = elemSize
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// NumElements returns the product of the array dimensions.
// An array without dimensions has no elements. Dimensions that are
// negative or overflow an int yield -1.
func NumElements(a Array) int {
	dims := a.Dimensions()
	if len(dims) == 0 {
		return 0
	}
	n, ok := SizeOf(dims, 1)
	if !ok {
		return -1
	}
	return n
}

// View is a Go-memory Array. It is used by the reference engine and by
// tests that need a descriptor without a foreign engine behind it.
type View struct {
	Class ClassID
	Dims  []int
	Buf   []byte
}

// NewView creates a View over buf. The buffer is not copied.
func NewView(class ClassID, dims []int, buf []byte) *View {
	return &View{Class: class, Dims: dims, Buf: buf}
}

// NewDoubleView packs vals (already column-major) into a double View.
func NewDoubleView(dims []int, vals []float64) *View {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		PutFloat64(buf, i, v)
	}
	return NewView(DoubleClass, dims, buf)
}

func (v *View) ClassID() ClassID  { return v.Class }
func (v *View) Dimensions() []int { return v.Dims }
func (v *View) Data() []byte      { return v.Buf }

// Float64At reads the i-th float64 element of buf.
func Float64At(buf []byte, i int) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(buf[i*8:]))
}

// PutFloat64 writes v as the i-th float64 element of buf.
func PutFloat64(buf []byte, i int, v float64) {
	binary.NativeEndian.PutUint64(buf[i*8:], math.Float64bits(v))
}

// Float32At reads the i-th float32 element of buf.
func Float32At(buf []byte, i int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(buf[i*4:]))
}

// PutFloat32 writes v as the i-th float32 element of buf.
func PutFloat32(buf []byte, i int, v float32) {
	binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(v))
}

// IntAt reads the i-th element of an integer, logical or char buffer and
// widens it to int64. Unsigned 64-bit values keep their bit pattern.
func IntAt(class ClassID, buf []byte, i int) int64 {
	switch class {
	case Int8Class:
		return int64(int8(buf[i]))
	case Uint8Class, LogicalClass:
		return int64(buf[i])
	case Int16Class:
		return int64(int16(binary.NativeEndian.Uint16(buf[i*2:])))
	case Uint16Class, CharClass:
		return int64(binary.NativeEndian.Uint16(buf[i*2:]))
	case Int32Class:
		return int64(int32(binary.NativeEndian.Uint32(buf[i*4:])))
	case Uint32Class:
		return int64(binary.NativeEndian.Uint32(buf[i*4:]))
	case Int64Class, Uint64Class:
		return int64(binary.NativeEndian.Uint64(buf[i*8:]))
	default:
		return 0
	}
}

// PutInt stores v as the i-th element of an integer, logical or char
// buffer, truncating to the element width.
func PutInt(class ClassID, buf []byte, i int, v int64) {
	switch class {
	case Int8Class, Uint8Class, LogicalClass:
		buf[i] = byte(v)
	case Int16Class, Uint16Class, CharClass:
		binary.NativeEndian.PutUint16(buf[i*2:], uint16(v))
	case Int32Class, Uint32Class:
		binary.NativeEndian.PutUint32(buf[i*4:], uint32(v))
	case Int64Class, Uint64Class:
		binary.NativeEndian.PutUint64(buf[i*8:], uint64(v))
	}
}
