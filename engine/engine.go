// Package engine defines the boundary between the bridge and an external
// numeric engine. A backend implements Engine and Conn; everything above
// this package talks to the engine only through these interfaces.
package engine

import (
	"errors"
	"fmt"

	"github.com/maxpert/mxbridge/mx"
)

// ErrUnavailable is returned by Open when no connection could be made.
var ErrUnavailable = errors.New("engine unavailable")

// ErrConnClosed is returned by Conn methods after Close.
var ErrConnClosed = errors.New("engine connection closed")

// Engine launches or attaches to an engine process.
type Engine interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Open connects using startCommand; empty means the default invocation.
	Open(startCommand string) (Conn, error)
}

// Conn is one live engine connection. Implementations are not safe for
// concurrent use; callers serialize every call.
type Conn interface {
	// Eval executes command text. A non-zero engine status is reported as
	// *StatusError.
	Eval(command string) error

	// GetVariable returns the value bound to name, or nil with a nil error
	// when the name is unbound. The Array is borrowed and valid only until
	// the next call on this Conn.
	GetVariable(name string) (mx.Array, error)

	// PutVariable binds a copy of value to name in the engine namespace.
	PutVariable(name string, value mx.Array) error

	// NewDoubleMatrix allocates a zeroed native rows x cols double matrix.
	// The caller owns it and must Destroy it.
	NewDoubleMatrix(rows, cols int) (mx.Matrix, error)

	// SetOutputCapture installs a console capture buffer of capacity bytes.
	SetOutputCapture(capacity int)

	// Output returns the console text produced by the last Eval.
	Output() string

	Close() error
}

// StatusError carries a non-zero status reported by the engine.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("engine %s failed with status %d: %s", e.Op, e.Status, e.Message)
}
