package bridge

import (
	"fmt"
	"reflect"
)

// ToMatrix converts a host value into a row-major matrix suitable for
// PutVariable. Numbers become 1x1, a slice of numbers becomes a single
// row and a slice of numeric slices becomes one row per element. Anything
// else fails with ErrUnsupportedValue.
func ToMatrix(v any) ([][]float64, error) {
	switch x := v.(type) {
	case [][]float64:
		return x, nil
	case []float64:
		return [][]float64{x}, nil
	case float64:
		return [][]float64{{x}}, nil
	case Value:
		return valueMatrix(x)
	}

	rv := reflect.ValueOf(v)
	if f, ok := scalarOf(rv); ok {
		return [][]float64{{f}}, nil
	}
	if !isSequence(rv) {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}

	if row, ok := rowOf(rv); ok {
		return [][]float64{row}, nil
	}
	out := make([][]float64, rv.Len())
	for i := range out {
		inner := rv.Index(i)
		if inner.Kind() == reflect.Interface {
			inner = inner.Elem()
		}
		if !isSequence(inner) {
			return nil, fmt.Errorf("%w: row %d is %s", ErrUnsupportedValue, i, inner.Kind())
		}
		row, ok := rowOf(inner)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not numeric", ErrUnsupportedValue, i)
		}
		out[i] = row
	}
	return out, nil
}

func valueMatrix(v Value) ([][]float64, error) {
	switch v.Kind() {
	case PayloadMatrix:
		return v.Matrix, nil
	case PayloadInt:
		return [][]float64{{float64(v.Int)}}, nil
	case PayloadReal:
		return [][]float64{{v.Real}}, nil
	}
	return nil, fmt.Errorf("%w: %s value", ErrUnsupportedValue, v.Tag)
}

func isSequence(rv reflect.Value) bool {
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
}

// rowOf converts a sequence whose elements are all numbers.
func rowOf(rv reflect.Value) ([]float64, bool) {
	row := make([]float64, rv.Len())
	for i := range row {
		f, ok := scalarOf(rv.Index(i))
		if !ok {
			return nil, false
		}
		row[i] = f
	}
	return row, true
}

func scalarOf(rv reflect.Value) (float64, bool) {
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
