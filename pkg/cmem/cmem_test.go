//go:build cgo
// +build cgo

package cmem

import (
	"testing"
	"unsafe"
)

func TestCalloc(t *testing.T) {
	ptr := Calloc(100, 8)
	if ptr == nil {
		t.Fatal("Calloc returned nil")
	}
	defer Free(ptr)

	slice := unsafe.Slice((*byte)(ptr), 800)
	for i := range slice {
		if slice[i] != 0 {
			t.Fatalf("Calloc memory not zero at index %d: got %d", i, slice[i])
		}
	}

	// Write some data to verify the memory is usable
	for i := range slice {
		slice[i] = byte(i % 256)
	}
	for i := range slice {
		if slice[i] != byte(i%256) {
			t.Fatalf("Memory corruption at index %d", i)
		}
	}
}

func TestFreeNil(t *testing.T) {
	Free(nil)
}
