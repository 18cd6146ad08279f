package mx

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrAllocFailed is returned when native memory cannot be obtained.
var ErrAllocFailed = errors.New("native allocation failed")

// NativeArray is an Array whose buffer lives in NativeBytes. Double
// arrays also satisfy Matrix.
type NativeArray struct {
	class     ClassID
	dims      []int
	mem       NativeBytes
	destroyed atomic.Bool
}

// NewNativeArray allocates a zeroed array of the given numeric class.
func NewNativeArray(class ClassID, dims []int) (*NativeArray, error) {
	size := class.ElementSize()
	if size == 0 {
		return nil, fmt.Errorf("class %s has no numeric buffer", class)
	}
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
	}
	n, ok := SizeOf(dims, size)
	if !ok {
		return nil, fmt.Errorf("dimensions %v overflow the addressable size", dims)
	}
	mem, err := AllocNative(n)
	if err != nil {
		return nil, err
	}
	return &NativeArray{
		class: class,
		dims:  append([]int(nil), dims...),
		mem:   mem,
	}, nil
}

// NewNativeMatrix allocates a zeroed rows x cols double matrix.
func NewNativeMatrix(rows, cols int) (*NativeArray, error) {
	return NewNativeArray(DoubleClass, []int{rows, cols})
}

// CopyNative deep-copies any Array into native memory.
func CopyNative(a Array) (*NativeArray, error) {
	dst, err := NewNativeArray(a.ClassID(), a.Dimensions())
	if err != nil {
		return nil, err
	}
	src := a.Data()
	buf := dst.Data()
	if len(src) < len(buf) {
		dst.Destroy()
		return nil, fmt.Errorf("source buffer holds %d bytes, need %d", len(src), len(buf))
	}
	copy(buf, src)
	return dst, nil
}

func (a *NativeArray) ClassID() ClassID  { return a.class }
func (a *NativeArray) Dimensions() []int { return a.dims }
func (a *NativeArray) Data() []byte      { return a.mem.Bytes() }

// Set writes a double element. It is only meaningful for double arrays.
func (a *NativeArray) Set(offset int, v float64) {
	PutFloat64(a.mem.Bytes(), offset, v)
}

// Destroy releases the native buffer.
// Safe to call multiple times (no-op after first call).
func (a *NativeArray) Destroy() {
	if a.destroyed.CompareAndSwap(false, true) {
		a.mem.Dispose()
	}
}

// Destroyed reports whether Destroy has run.
func (a *NativeArray) Destroyed() bool {
	return a.destroyed.Load()
}
