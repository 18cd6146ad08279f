package lite

import (
	"fmt"
	"math"

	"github.com/maxpert/mxbridge/mx"
)

// value is the evaluator's working representation of an array. Elements
// are held as float64 in column-major order; 64-bit integer classes are
// exact up to 2^53.
type value struct {
	class      mx.ClassID
	rows, cols int
	data       []float64
}

func scalar(v float64) *value {
	return &value{class: mx.DoubleClass, rows: 1, cols: 1, data: []float64{v}}
}

func newValue(class mx.ClassID, rows, cols int) *value {
	return &value{class: class, rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func charValue(s string) *value {
	runes := []rune(s)
	v := newValue(mx.CharClass, 1, len(runes))
	if len(runes) == 0 {
		v.rows = 0
	}
	for i, r := range runes {
		v.data[i] = float64(r)
	}
	return v
}

func (v *value) numel() int     { return len(v.data) }
func (v *value) isScalar() bool { return v.rows == 1 && v.cols == 1 }
func (v *value) isEmpty() bool  { return len(v.data) == 0 }

func (v *value) at(r, c int) float64 {
	return v.data[mx.LinearOffset(r, c, v.rows)]
}

func (v *value) clone() *value {
	out := &value{class: v.class, rows: v.rows, cols: v.cols, data: make([]float64, len(v.data))}
	copy(out.data, v.data)
	return out
}

func isInteger(class mx.ClassID) bool {
	switch class {
	case mx.Int8Class, mx.Uint8Class, mx.Int16Class, mx.Uint16Class,
		mx.Int32Class, mx.Uint32Class, mx.Int64Class, mx.Uint64Class:
		return true
	}
	return false
}

// intRange returns the representable bounds of an integer or char class.
func intRange(class mx.ClassID) (lo, hi float64) {
	switch class {
	case mx.Int8Class:
		return math.MinInt8, math.MaxInt8
	case mx.Uint8Class:
		return 0, math.MaxUint8
	case mx.Int16Class:
		return math.MinInt16, math.MaxInt16
	case mx.Uint16Class, mx.CharClass:
		return 0, math.MaxUint16
	case mx.Int32Class:
		return math.MinInt32, math.MaxInt32
	case mx.Uint32Class:
		return 0, math.MaxUint32
	case mx.Int64Class:
		return math.MinInt64, math.MaxInt64
	case mx.Uint64Class:
		return 0, math.MaxUint64
	}
	return math.Inf(-1), math.Inf(1)
}

// castElement converts x to the value domain of class. Integer classes
// round half away from zero and saturate; NaN becomes zero.
func castElement(class mx.ClassID, x float64) float64 {
	switch {
	case class == mx.DoubleClass:
		return x
	case class == mx.SingleClass:
		return float64(float32(x))
	case class == mx.LogicalClass:
		if x != 0 {
			return 1
		}
		return 0
	case isInteger(class) || class == mx.CharClass:
		if math.IsNaN(x) {
			return 0
		}
		lo, hi := intRange(class)
		x = math.Round(x)
		if x < lo {
			return lo
		}
		if x > hi {
			return hi
		}
		return x
	}
	return x
}

func (v *value) cast(class mx.ClassID) (*value, error) {
	if class == mx.LogicalClass {
		for _, x := range v.data {
			if math.IsNaN(x) {
				return nil, fmt.Errorf("NaN's cannot be converted to logicals")
			}
		}
	}
	out := &value{class: class, rows: v.rows, cols: v.cols, data: make([]float64, len(v.data))}
	for i, x := range v.data {
		out.data[i] = castElement(class, x)
	}
	return out, nil
}

func (v *value) transpose() *value {
	out := &value{class: v.class, rows: v.cols, cols: v.rows, data: make([]float64, len(v.data))}
	for r := 0; r < v.rows; r++ {
		for c := 0; c < v.cols; c++ {
			out.data[mx.LinearOffset(c, r, out.rows)] = v.at(r, c)
		}
	}
	return out
}

func (v *value) String() string {
	if v.isScalar() {
		return fmt.Sprintf("%s %g", v.class, v.data[0])
	}
	return fmt.Sprintf("%dx%d %s", v.rows, v.cols, v.class)
}

// fromArray reads an engine array into a value.
func fromArray(a mx.Array) (*value, error) {
	class := a.ClassID()
	if !class.IsNumeric() {
		return nil, fmt.Errorf("class %s is not supported", class)
	}
	dims := a.Dimensions()
	if len(dims) != 2 {
		return nil, fmt.Errorf("only 2-D arrays are supported, got %d dimensions", len(dims))
	}
	v := newValue(class, dims[0], dims[1])
	buf := a.Data()
	if len(buf) < v.numel()*class.ElementSize() {
		return nil, fmt.Errorf("array buffer holds %d bytes, need %d", len(buf), v.numel()*class.ElementSize())
	}
	for i := range v.data {
		switch class {
		case mx.DoubleClass:
			v.data[i] = mx.Float64At(buf, i)
		case mx.SingleClass:
			v.data[i] = float64(mx.Float32At(buf, i))
		case mx.Uint64Class:
			v.data[i] = float64(uint64(mx.IntAt(class, buf, i)))
		default:
			v.data[i] = float64(mx.IntAt(class, buf, i))
		}
	}
	return v, nil
}

// toNative writes the value into a freshly allocated native array.
func (v *value) toNative() (*mx.NativeArray, error) {
	a, err := mx.NewNativeArray(v.class, []int{v.rows, v.cols})
	if err != nil {
		return nil, err
	}
	buf := a.Data()
	for i, x := range v.data {
		switch v.class {
		case mx.DoubleClass:
			mx.PutFloat64(buf, i, x)
		case mx.SingleClass:
			mx.PutFloat32(buf, i, float32(x))
		case mx.Uint64Class:
			x = castElement(v.class, x)
			var u uint64
			if x >= math.MaxUint64 {
				u = math.MaxUint64
			} else {
				u = uint64(x)
			}
			mx.PutInt(v.class, buf, i, int64(u))
		default:
			x = castElement(v.class, x)
			if x >= math.MaxInt64 {
				mx.PutInt(v.class, buf, i, math.MaxInt64)
				continue
			}
			mx.PutInt(v.class, buf, i, int64(x))
		}
	}
	return a, nil
}
