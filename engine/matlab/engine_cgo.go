//go:build matlab && cgo

package matlab

/*
#cgo LDFLAGS: -leng -lmx
#include <stdlib.h>
#include <string.h>
#include <engine.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/mx"
)

// outputPrompt is prefixed to captured console text by the engine.
const outputPrompt = ">> "

// Engine launches engine processes with engOpen.
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "matlab" }

// Open starts an engine. An empty start command lets the library pick its
// default invocation.
func (e *Engine) Open(startCommand string) (engine.Conn, error) {
	var cmd *C.char
	if startCommand != "" {
		cmd = C.CString(startCommand)
		defer C.free(unsafe.Pointer(cmd))
	}
	ep := C.engOpen(cmd)
	if ep == nil {
		return nil, fmt.Errorf("%w: engOpen(%q) returned no engine", engine.ErrUnavailable, startCommand)
	}
	log.Debug().Str("engine", "matlab").Str("start_command", startCommand).Msg("Engine started")
	return &Conn{ep: ep}, nil
}

// Conn wraps one engine handle. The array returned by GetVariable is freed
// on the next call, which is what keeps borrowed descriptors bounded.
type Conn struct {
	ep       *C.Engine
	borrowed *C.mxArray
	outBuf   *C.char
	closed   bool
}

var _ engine.Conn = (*Conn)(nil)

func (c *Conn) releaseBorrowed() {
	if c.borrowed != nil {
		C.mxDestroyArray(c.borrowed)
		c.borrowed = nil
	}
}

func (c *Conn) Eval(command string) error {
	if c.closed {
		return engine.ErrConnClosed
	}
	c.releaseBorrowed()

	cmd := C.CString(command)
	defer C.free(unsafe.Pointer(cmd))
	if rc := C.engEvalString(c.ep, cmd); rc != 0 {
		return &engine.StatusError{Op: "eval", Status: int(rc), Message: "engine session is no longer running"}
	}
	return nil
}

func (c *Conn) GetVariable(name string) (mx.Array, error) {
	if c.closed {
		return nil, engine.ErrConnClosed
	}
	c.releaseBorrowed()

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	arr := C.engGetVariable(c.ep, cname)
	if arr == nil {
		return nil, nil
	}
	c.borrowed = arr
	return &array{ptr: arr}, nil
}

// PutVariable copies value into the engine workspace. Matrices created by
// NewDoubleMatrix are sent as they are; other descriptors are staged in a
// temporary engine array.
func (c *Conn) PutVariable(name string, value mx.Array) error {
	if c.closed {
		return engine.ErrConnClosed
	}
	c.releaseBorrowed()

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	if m, ok := value.(*matrix); ok {
		if m.destroyed.Load() {
			return &engine.StatusError{Op: "put", Status: 1, Message: "matrix already destroyed"}
		}
		if rc := C.engPutVariable(c.ep, cname, m.ptr); rc != 0 {
			return &engine.StatusError{Op: "put", Status: int(rc)}
		}
		return nil
	}

	staged, err := stage(value)
	if err != nil {
		return &engine.StatusError{Op: "put", Status: 1, Message: err.Error()}
	}
	defer C.mxDestroyArray(staged)
	if rc := C.engPutVariable(c.ep, cname, staged); rc != 0 {
		return &engine.StatusError{Op: "put", Status: int(rc)}
	}
	return nil
}

func stage(value mx.Array) (*C.mxArray, error) {
	dims := value.Dimensions()
	if len(dims) != 2 {
		return nil, fmt.Errorf("only 2-D arrays are supported, got %d dimensions", len(dims))
	}
	class := value.ClassID()
	if !class.IsNumeric() || class == mx.CharClass {
		return nil, fmt.Errorf("class %s cannot be staged", class)
	}
	rows, cols := C.mwSize(dims[0]), C.mwSize(dims[1])

	var arr *C.mxArray
	if class == mx.LogicalClass {
		arr = C.mxCreateLogicalMatrix(rows, cols)
	} else {
		arr = C.mxCreateNumericMatrix(rows, cols, C.mxClassID(class), C.mxREAL)
	}
	if arr == nil {
		return nil, mx.ErrAllocFailed
	}

	size := dims[0] * dims[1] * class.ElementSize()
	src := value.Data()
	if len(src) < size {
		C.mxDestroyArray(arr)
		return nil, fmt.Errorf("source buffer holds %d bytes, need %d", len(src), size)
	}
	if size > 0 {
		C.memcpy(C.mxGetData(arr), unsafe.Pointer(&src[0]), C.size_t(size))
	}
	return arr, nil
}

func (c *Conn) NewDoubleMatrix(rows, cols int) (mx.Matrix, error) {
	if c.closed {
		return nil, engine.ErrConnClosed
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative matrix size %dx%d", rows, cols)
	}
	arr := C.mxCreateDoubleMatrix(C.mwSize(rows), C.mwSize(cols), C.mxREAL)
	if arr == nil {
		return nil, mx.ErrAllocFailed
	}
	return &matrix{array: array{ptr: arr}}, nil
}

// SetOutputCapture points the engine at a C buffer of capacity bytes plus
// a terminator.
func (c *Conn) SetOutputCapture(capacity int) {
	if c.closed {
		return
	}
	C.engOutputBuffer(c.ep, nil, 0)
	if c.outBuf != nil {
		C.free(unsafe.Pointer(c.outBuf))
		c.outBuf = nil
	}
	if capacity <= 0 {
		return
	}
	c.outBuf = (*C.char)(C.calloc(C.size_t(capacity+1), 1))
	if c.outBuf == nil {
		log.Warn().Int("capacity", capacity).Msg("Unable to allocate output buffer")
		return
	}
	C.engOutputBuffer(c.ep, c.outBuf, C.int(capacity))
}

func (c *Conn) Output() string {
	if c.outBuf == nil {
		return ""
	}
	return strings.TrimPrefix(C.GoString(c.outBuf), outputPrompt)
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.releaseBorrowed()
	C.engOutputBuffer(c.ep, nil, 0)
	if c.outBuf != nil {
		C.free(unsafe.Pointer(c.outBuf))
		c.outBuf = nil
	}
	c.closed = true
	if rc := C.engClose(c.ep); rc != 0 {
		return &engine.StatusError{Op: "close", Status: int(rc)}
	}
	return nil
}

// array is a borrowed view of an engine-owned mxArray.
type array struct {
	ptr *C.mxArray
}

func (a *array) ClassID() mx.ClassID {
	return mx.ClassID(C.mxGetClassID(a.ptr))
}

func (a *array) Dimensions() []int {
	n := int(C.mxGetNumberOfDimensions(a.ptr))
	raw := unsafe.Slice(C.mxGetDimensions(a.ptr), n)
	dims := make([]int, n)
	for i, d := range raw {
		dims[i] = int(d)
	}
	return dims
}

func (a *array) Data() []byte {
	p := C.mxGetData(a.ptr)
	if p == nil {
		return nil
	}
	n := int(C.mxGetNumberOfElements(a.ptr)) * int(C.mxGetElementSize(a.ptr))
	return unsafe.Slice((*byte)(p), n)
}

// matrix is an mxArray created for the host. The host owns it until
// Destroy.
type matrix struct {
	array
	destroyed atomic.Bool
}

func (m *matrix) Set(offset int, v float64) {
	n := int(C.mxGetNumberOfElements(m.ptr))
	vals := unsafe.Slice((*float64)(C.mxGetData(m.ptr)), n)
	vals[offset] = v
}

func (m *matrix) Destroy() {
	if m.destroyed.CompareAndSwap(false, true) {
		C.mxDestroyArray(m.ptr)
	}
}
