package mx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearOffset(t *testing.T) {
	// 2x3 matrix stored column-major: (0,0)(1,0)(0,1)(1,1)(0,2)(1,2)
	tests := []struct {
		r, c, rows int
		want       int
	}{
		{0, 0, 2, 0},
		{1, 0, 2, 1},
		{0, 1, 2, 2},
		{1, 1, 2, 3},
		{0, 2, 2, 4},
		{1, 2, 2, 5},
		{0, 4, 1, 4},
		{3, 0, 4, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LinearOffset(tt.r, tt.c, tt.rows), "(%d,%d) rows=%d", tt.r, tt.c, tt.rows)
	}
}

func TestNumElements(t *testing.T) {
	assert.Equal(t, 6, NumElements(NewView(DoubleClass, []int{2, 3}, nil)))
	assert.Equal(t, 24, NumElements(NewView(DoubleClass, []int{2, 3, 4}, nil)))
	assert.Equal(t, 0, NumElements(NewView(DoubleClass, []int{0, 3}, nil)))
	assert.Equal(t, 0, NumElements(NewView(DoubleClass, nil, nil)))
	assert.Equal(t, -1, NumElements(NewView(DoubleClass, []int{1 << 31, 1 << 33}, nil)))
	assert.Equal(t, -1, NumElements(NewView(DoubleClass, []int{-1, 3}, nil)))
}

func TestSizeOf(t *testing.T) {
	tests := []struct {
		dims []int
		size int
		want int
		ok   bool
	}{
		{[]int{2, 3}, 8, 48, true},
		{[]int{0, 1 << 62}, 8, 0, true},
		{[]int{1 << 31, 1 << 33}, 8, 0, false},
		{[]int{1 << 61}, 8, 0, false},
		{[]int{2, -1}, 1, 0, false},
	}
	for _, tt := range tests {
		n, ok := SizeOf(tt.dims, tt.size)
		assert.Equal(t, tt.ok, ok, "dims %v", tt.dims)
		assert.Equal(t, tt.want, n, "dims %v", tt.dims)
	}
}

func TestElementSize(t *testing.T) {
	tests := map[ClassID]int{
		LogicalClass:  1,
		CharClass:     2,
		DoubleClass:   8,
		SingleClass:   4,
		Int8Class:     1,
		Uint8Class:    1,
		Int16Class:    2,
		Uint16Class:   2,
		Int32Class:    4,
		Uint32Class:   4,
		Int64Class:    8,
		Uint64Class:   8,
		CellClass:     0,
		StructClass:   0,
		FunctionClass: 0,
		UnknownClass:  0,
		ClassID(99):   0,
	}
	for class, want := range tests {
		assert.Equal(t, want, class.ElementSize(), class.String())
	}
}

func TestClassNames(t *testing.T) {
	assert.Equal(t, "double", DoubleClass.String())
	assert.Equal(t, "class(42)", ClassID(42).String())

	id, ok := ClassByName("uint16")
	assert.True(t, ok)
	assert.Equal(t, Uint16Class, id)

	_, ok = ClassByName("quaternion")
	assert.False(t, ok)
}

func TestIntRoundTrip(t *testing.T) {
	tests := []struct {
		class ClassID
		in    int64
		want  int64
	}{
		{Int8Class, -5, -5},
		{Uint8Class, 250, 250},
		{LogicalClass, 1, 1},
		{Int16Class, -30000, -30000},
		{Uint16Class, 65535, 65535},
		{CharClass, 'A', 'A'},
		{Int32Class, math.MinInt32, math.MinInt32},
		{Uint32Class, math.MaxUint32, math.MaxUint32},
		{Int64Class, math.MinInt64, math.MinInt64},
		{Uint64Class, -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			buf := make([]byte, tt.class.ElementSize()*3)
			PutInt(tt.class, buf, 2, tt.in)
			assert.Equal(t, tt.want, IntAt(tt.class, buf, 2))
			assert.Equal(t, int64(0), IntAt(tt.class, buf, 0))
		})
	}
}

func TestFloatHelpers(t *testing.T) {
	buf := make([]byte, 16)
	PutFloat64(buf, 1, math.Pi)
	assert.Equal(t, math.Pi, Float64At(buf, 1))

	PutFloat32(buf, 3, 1.5)
	assert.Equal(t, float32(1.5), Float32At(buf, 3))
}

func TestNewDoubleView(t *testing.T) {
	v := NewDoubleView([]int{2, 2}, []float64{1, 3, 2, 4})
	require.Len(t, v.Data(), 32)
	assert.Equal(t, DoubleClass, v.ClassID())
	assert.Equal(t, 3.0, Float64At(v.Data(), 1))
}

func TestNativeMatrix(t *testing.T) {
	m, err := NewNativeMatrix(2, 3)
	require.NoError(t, err)

	assert.Equal(t, DoubleClass, m.ClassID())
	assert.Equal(t, []int{2, 3}, m.Dimensions())
	require.Len(t, m.Data(), 48)

	for i := 0; i < 6; i++ {
		assert.Equal(t, 0.0, Float64At(m.Data(), i), "native memory must start zeroed")
	}

	m.Set(LinearOffset(1, 2, 2), 7.25)
	assert.Equal(t, 7.25, Float64At(m.Data(), 5))

	m.Destroy()
	assert.True(t, m.Destroyed())
	m.Destroy()

	assert.Panics(t, func() { _ = m.Data() })
}

func TestNewNativeArrayRejectsNonNumeric(t *testing.T) {
	_, err := NewNativeArray(CellClass, []int{1, 1})
	assert.Error(t, err)

	_, err = NewNativeArray(DoubleClass, []int{-1, 2})
	assert.Error(t, err)

	_, err = NewNativeArray(DoubleClass, []int{1 << 31, 1 << 33})
	assert.Error(t, err)
}

func TestCopyNative(t *testing.T) {
	src := NewDoubleView([]int{1, 3}, []float64{1, 2, 3})
	dst, err := CopyNative(src)
	require.NoError(t, err)
	defer dst.Destroy()

	assert.Equal(t, src.Data(), dst.Data())

	// The copy must not alias the source.
	PutFloat64(src.Buf, 0, 100)
	assert.Equal(t, 1.0, Float64At(dst.Data(), 0))

	_, err = CopyNative(NewView(DoubleClass, []int{2, 2}, make([]byte, 8)))
	assert.Error(t, err)
}
