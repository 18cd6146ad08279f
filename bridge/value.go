// Package bridge converts between the engine's native arrays and tagged
// host values, and drives one engine connection per Session.
package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeTag identifies the host type a Value maps to. The numeric codes are
// part of the host contract and must not be renumbered.
type TypeTag int

const (
	Unknown TypeTag = iota
	Char
	UnsignedChar
	Byte
	Short
	UnsignedShort
	Int
	UnsignedInt
	Long
	UnsignedLong
	LongLong
	UnsignedLongLong
	Boolean
	Double
	Float
	Null
)

var tagNames = [...]string{
	Unknown:          "Unknown",
	Char:             "Char",
	UnsignedChar:     "UnsignedChar",
	Byte:             "Byte",
	Short:            "Short",
	UnsignedShort:    "UnsignedShort",
	Int:              "Int",
	UnsignedInt:      "UnsignedInt",
	Long:             "Long",
	UnsignedLong:     "UnsignedLong",
	LongLong:         "LongLong",
	UnsignedLongLong: "UnsignedLongLong",
	Boolean:          "Boolean",
	Double:           "Double",
	Float:            "Float",
	Null:             "Null",
}

func (t TypeTag) String() string {
	if t >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "TypeTag(" + strconv.Itoa(int(t)) + ")"
}

// IsInteger reports whether scalars of this tag carry an Int payload.
func (t TypeTag) IsInteger() bool {
	switch t {
	case Char, UnsignedChar, Byte, Short, UnsignedShort, Int, UnsignedInt,
		Long, UnsignedLong, LongLong, UnsignedLongLong, Boolean:
		return true
	}
	return false
}

// IsReal reports whether scalars of this tag carry a Real payload.
func (t TypeTag) IsReal() bool {
	return t == Double || t == Float
}

// PayloadKind says which field of a Value is populated.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadInt
	PayloadReal
	PayloadMatrix
)

// Value is a tagged host value. At most one payload is populated: Int for
// integer-like scalars, Real for real scalars, Matrix (row-major) when
// IsArray is set.
type Value struct {
	Tag     TypeTag     `msgpack:"tag" json:"tag"`
	IsArray bool        `msgpack:"is_array" json:"is_array"`
	Int     int64       `msgpack:"int,omitempty" json:"int,omitempty"`
	Real    float64     `msgpack:"real,omitempty" json:"real,omitempty"`
	Matrix  [][]float64 `msgpack:"matrix,omitempty" json:"matrix,omitempty"`
}

// NullValue is the value of an unbound variable.
func NullValue() Value { return Value{Tag: Null} }

// Kind reports the populated payload.
func (v Value) Kind() PayloadKind {
	switch {
	case v.IsArray:
		return PayloadMatrix
	case v.Tag.IsInteger():
		return PayloadInt
	case v.Tag.IsReal():
		return PayloadReal
	}
	return PayloadNone
}

// Interface returns the payload as a plain Go value: nil, int64, float64
// or [][]float64.
func (v Value) Interface() any {
	switch v.Kind() {
	case PayloadMatrix:
		return v.Matrix
	case PayloadInt:
		return v.Int
	case PayloadReal:
		return v.Real
	}
	return nil
}

// Validate checks the payload invariants.
func (v Value) Validate() error {
	if v.Tag < Unknown || v.Tag > Null {
		return fmt.Errorf("invalid tag %d", int(v.Tag))
	}
	if v.IsArray {
		if v.Tag != Double {
			return fmt.Errorf("array value must be tagged Double, got %s", v.Tag)
		}
		if len(v.Matrix) == 0 || len(v.Matrix[0]) == 0 {
			return fmt.Errorf("array value has no elements")
		}
		cols := len(v.Matrix[0])
		for i, row := range v.Matrix {
			if len(row) != cols {
				return &RaggedRowError{Row: i, Want: cols, Got: len(row)}
			}
		}
		return nil
	}
	if v.Matrix != nil {
		return fmt.Errorf("scalar value %s carries a matrix", v.Tag)
	}
	if !v.Tag.IsInteger() && v.Int != 0 {
		return fmt.Errorf("%s value carries an integer payload", v.Tag)
	}
	if !v.Tag.IsReal() && v.Real != 0 {
		return fmt.Errorf("%s value carries a real payload", v.Tag)
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind() {
	case PayloadMatrix:
		var sb strings.Builder
		sb.WriteString(v.Tag.String())
		cols := 0
		if len(v.Matrix) > 0 {
			cols = len(v.Matrix[0])
		}
		fmt.Fprintf(&sb, "[%dx%d]", len(v.Matrix), cols)
		sb.WriteString("[")
		for i, row := range v.Matrix {
			if i > 0 {
				sb.WriteString("; ")
			}
			for j, x := range row {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
			}
		}
		sb.WriteString("]")
		return sb.String()
	case PayloadInt:
		return v.Tag.String() + "(" + strconv.FormatInt(v.Int, 10) + ")"
	case PayloadReal:
		return v.Tag.String() + "(" + strconv.FormatFloat(v.Real, 'g', -1, 64) + ")"
	}
	return v.Tag.String()
}
