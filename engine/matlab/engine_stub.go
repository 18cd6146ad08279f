//go:build !matlab || !cgo

package matlab

import (
	"fmt"

	"github.com/maxpert/mxbridge/engine"
)

// Engine is a placeholder used when the binary is built without the
// engine binding.
type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "matlab" }

func (e *Engine) Open(string) (engine.Conn, error) {
	return nil, fmt.Errorf("%w: built without matlab support (use -tags matlab)", engine.ErrUnavailable)
}
