package bridge

import (
	"errors"
	"fmt"

	"github.com/maxpert/mxbridge/engine"
)

var (
	ErrNotOpen     = errors.New("session is not open")
	ErrAlreadyOpen = errors.New("session is already open")

	// ErrSessionClosed also matches ErrNotOpen.
	ErrSessionClosed = fmt.Errorf("session is closed: %w", ErrNotOpen)

	// ErrEngineUnavailable wraps engine.ErrUnavailable so callers can test
	// for either.
	ErrEngineUnavailable = fmt.Errorf("bridge: %w", engine.ErrUnavailable)

	ErrInvalidCommand            = errors.New("command is empty")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrUnsupportedDimensionality = errors.New("only 2-D real arrays are supported")
	ErrEmptyMatrix               = errors.New("matrix has no elements")
	ErrShortBuffer               = errors.New("array buffer is shorter than its dimensions")
	ErrAlreadyRegistered         = errors.New("handle is already registered")
	ErrUnsupportedValue          = errors.New("value cannot be converted to a matrix")
)

// DimensionError reports an array whose dimensionality is not 2.
type DimensionError struct {
	Dims []int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: got %d dimensions %v", ErrUnsupportedDimensionality, len(e.Dims), e.Dims)
}

func (e *DimensionError) Unwrap() error { return ErrUnsupportedDimensionality }

// RaggedRowError reports a host matrix row whose length differs from row 0.
type RaggedRowError struct {
	Row  int
	Want int
	Got  int
}

func (e *RaggedRowError) Error() string {
	return fmt.Sprintf("%s: row %d has %d columns, want %d", ErrInvalidArgument, e.Row, e.Got, e.Want)
}

func (e *RaggedRowError) Unwrap() error { return ErrInvalidArgument }
