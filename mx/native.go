//go:build cgo
// +build cgo

package mx

import (
	"sync/atomic"
	"unsafe"

	"github.com/maxpert/mxbridge/pkg/cmem"
)

// NativeBytes represents memory allocated outside the Go heap.
// It must be explicitly disposed when no longer needed.
type NativeBytes interface {
	Bytes() []byte
	Dispose()
	Len() int
}

// nativeBytes implements NativeBytes using the C allocator.
type nativeBytes struct {
	ptr      unsafe.Pointer
	len      int
	disposed atomic.Bool
}

// AllocNative allocates size zeroed bytes outside the Go heap.
func AllocNative(size int) (NativeBytes, error) {
	if size < 0 {
		return nil, ErrAllocFailed
	}
	// calloc(0) may legally return NULL; always ask for at least one byte.
	ptr := cmem.Calloc(uintptr(max(size, 1)), 1)
	if ptr == nil {
		return nil, ErrAllocFailed
	}
	return &nativeBytes{
		ptr: ptr,
		len: size,
	}, nil
}

// Bytes returns the underlying byte slice.
// Panics if the memory has been disposed.
func (nb *nativeBytes) Bytes() []byte {
	if nb.disposed.Load() {
		panic("use after dispose: NativeBytes has been disposed")
	}
	return unsafe.Slice((*byte)(nb.ptr), nb.len)
}

// Dispose frees the native memory.
// Safe to call multiple times (no-op after first call).
func (nb *nativeBytes) Dispose() {
	if nb.disposed.CompareAndSwap(false, true) {
		cmem.Free(nb.ptr)
		nb.ptr = nil
	}
}

// Len returns the length of the byte slice.
func (nb *nativeBytes) Len() int {
	return nb.len
}
