//go:build cgo
// +build cgo

// Package cmem provides Go bindings for the C library allocator.
// Memory returned here lives outside the Go heap, so it can be handed to
// foreign engines that keep their own pointers to it.
package cmem

/*
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"
)

// Calloc allocates a contiguous block of zeroed unmanaged memory.
// Total amount in bytes is count multiplied by size.
func Calloc(count uintptr, size uintptr) unsafe.Pointer {
	return C.calloc(C.size_t(count), C.size_t(size))
}

// Free deallocates a block of memory.
func Free(ptr unsafe.Pointer) {
	C.free(ptr)
}
