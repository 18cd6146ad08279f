//go:build !cgo
// +build !cgo

package mx

import "sync/atomic"

// NativeBytes represents memory allocated outside the Go heap.
// It must be explicitly disposed when no longer needed.
type NativeBytes interface {
	Bytes() []byte
	Dispose()
	Len() int
}

// goBytes implements NativeBytes using regular Go allocations.
type goBytes struct {
	data     []byte
	disposed atomic.Bool
}

// AllocNative falls back to a Go allocation when CGO is not available.
func AllocNative(size int) (NativeBytes, error) {
	if size < 0 {
		return nil, ErrAllocFailed
	}
	return &goBytes{data: make([]byte, size)}, nil
}

// Bytes returns the underlying byte slice.
// Panics if the memory has been disposed.
func (gb *goBytes) Bytes() []byte {
	if gb.disposed.Load() {
		panic("use after dispose: NativeBytes has been disposed")
	}
	return gb.data
}

// Dispose clears the reference to the byte slice.
// Safe to call multiple times (no-op after first call).
func (gb *goBytes) Dispose() {
	if gb.disposed.CompareAndSwap(false, true) {
		gb.data = nil
	}
}

// Len returns the length of the byte slice.
func (gb *goBytes) Len() int {
	return len(gb.data)
}
