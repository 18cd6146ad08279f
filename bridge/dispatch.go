package bridge

import (
	"github.com/maxpert/mxbridge/mx"
)

// Classify rebuilds a tagged Value from a native array. A nil array is
// Null. Classes without a host mapping yield Unknown and no error; every
// scalar path reads the first element.
func Classify(a mx.Array) (Value, error) {
	if a == nil {
		return NullValue(), nil
	}

	class := a.ClassID()
	if class == mx.DoubleClass {
		return DecodeReal(a)
	}

	var tag TypeTag
	switch class {
	case mx.SingleClass:
		tag = Float
	case mx.Int8Class, mx.CharClass:
		tag = Char
	case mx.Uint8Class:
		tag = UnsignedChar
	case mx.Int16Class:
		tag = Short
	case mx.Uint16Class:
		tag = UnsignedShort
	case mx.Int32Class:
		tag = Long
	case mx.Uint32Class:
		tag = UnsignedLong
	case mx.Int64Class:
		tag = LongLong
	case mx.Uint64Class:
		tag = UnsignedLongLong
	default:
		return Value{Tag: Unknown}, nil
	}

	switch n := mx.NumElements(a); {
	case n == 0:
		return Value{}, ErrEmptyMatrix
	case n < 0:
		return Value{}, ErrShortBuffer
	}
	buf := a.Data()
	if len(buf) < class.ElementSize() {
		return Value{}, ErrShortBuffer
	}

	if tag == Float {
		return Value{Tag: Float, Real: float64(mx.Float32At(buf, 0))}, nil
	}
	return Value{Tag: tag, Int: mx.IntAt(class, buf, 0)}, nil
}
