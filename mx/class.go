// Package mx models the engine's native array representation: a class
// identifier, a dimension vector and a raw element buffer. Nothing in this
// package knows about host values; conversion lives in package bridge.
package mx

import "fmt"

// ClassID identifies the numeric class of a native array.
// The values follow the engine's own class enumeration so that backends can
// convert with a plain cast.
type ClassID int

const (
	UnknownClass ClassID = iota
	CellClass
	StructClass
	LogicalClass
	CharClass
	VoidClass
	DoubleClass
	SingleClass
	Int8Class
	Uint8Class
	Int16Class
	Uint16Class
	Int32Class
	Uint32Class
	Int64Class
	Uint64Class
	FunctionClass
)

var classNames = map[ClassID]string{
	UnknownClass:  "unknown",
	CellClass:     "cell",
	StructClass:   "struct",
	LogicalClass:  "logical",
	CharClass:     "char",
	VoidClass:     "void",
	DoubleClass:   "double",
	SingleClass:   "single",
	Int8Class:     "int8",
	Uint8Class:    "uint8",
	Int16Class:    "int16",
	Uint16Class:   "uint16",
	Int32Class:    "int32",
	Uint32Class:   "uint32",
	Int64Class:    "int64",
	Uint64Class:   "uint64",
	FunctionClass: "function_handle",
}

func (c ClassID) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ElementSize returns the width in bytes of one element, or 0 for classes
// that do not carry a flat numeric buffer.
func (c ClassID) ElementSize() int {
	switch c {
	case LogicalClass, Int8Class, Uint8Class:
		return 1
	case CharClass, Int16Class, Uint16Class:
		return 2
	case SingleClass, Int32Class, Uint32Class:
		return 4
	case DoubleClass, Int64Class, Uint64Class:
		return 8
	default:
		return 0
	}
}

// IsNumeric reports whether the class stores a flat numeric buffer.
func (c ClassID) IsNumeric() bool {
	return c.ElementSize() > 0
}

// ClassByName resolves a class name as returned by String.
func ClassByName(name string) (ClassID, bool) {
	for id, n := range classNames {
		if n == name {
			return id, true
		}
	}
	return UnknownClass, false
}
