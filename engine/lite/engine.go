// Package lite is an in-process reference engine. It implements a small
// numeric command language (assignments, matrix literals, ranges,
// arithmetic and a handful of builtins) over native arrays, so the bridge
// can be exercised without a licensed engine installation.
package lite

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/mx"
)

// Cache size for parsed command text
const programCacheSize = 512

// maxNameLength matches the engine's namelengthmax.
const maxNameLength = 63

type program struct {
	src   string
	stmts []statement
}

// Engine opens lite connections. Parsed programs are shared between
// connections through an LRU keyed by the XXH64 hash of the command text.
type Engine struct {
	programs *lru.Cache[uint64, *program]
}

var _ engine.Engine = (*Engine)(nil)

// New creates a lite engine.
func New() *Engine {
	programs, err := lru.New[uint64, *program](programCacheSize)
	if err != nil {
		panic("failed to create program cache: " + err.Error())
	}
	return &Engine{programs: programs}
}

func (e *Engine) Name() string { return "lite" }

// Open returns a fresh connection with an empty workspace. The lite engine
// has no process to launch, so the start command is ignored.
func (e *Engine) Open(startCommand string) (engine.Conn, error) {
	if startCommand != "" {
		log.Debug().Str("engine", "lite").Str("start_command", startCommand).Msg("Ignoring start command")
	}
	return &Conn{eng: e, vars: make(map[string]*mx.NativeArray)}, nil
}

func (e *Engine) compile(src string) ([]statement, error) {
	hash := xxhash.Sum64String(src)
	if p, ok := e.programs.Get(hash); ok && p.src == src {
		return p.stmts, nil
	}
	stmts, err := parse(src)
	if err != nil {
		return nil, err
	}
	e.programs.Add(hash, &program{src: src, stmts: stmts})
	return stmts, nil
}

// Conn is one lite workspace. Variables live in native memory; arrays
// returned by GetVariable are the stored arrays themselves and stay valid
// until the variable is reassigned, cleared or the connection closes.
type Conn struct {
	eng      *Engine
	vars     map[string]*mx.NativeArray
	capacity int
	out      strings.Builder
	full     bool // capture truncated; later text is dropped
	closed   bool
}

var _ engine.Conn = (*Conn)(nil)

// Eval runs command text. Statements before a failing one keep their
// effect. The failure is echoed to the output and returned as
// *engine.StatusError.
func (c *Conn) Eval(command string) error {
	if c.closed {
		return engine.ErrConnClosed
	}
	c.out.Reset()
	c.full = false

	stmts, err := c.eng.compile(command)
	if err != nil {
		return c.fail(err)
	}
	for _, st := range stmts {
		if err := c.exec(st); err != nil {
			return c.fail(err)
		}
	}
	return nil
}

func (c *Conn) fail(err error) error {
	msg := err.Error()
	c.write("Error: " + msg + "\n")
	return &engine.StatusError{Op: "eval", Status: 1, Message: msg}
}

func (c *Conn) GetVariable(name string) (mx.Array, error) {
	if c.closed {
		return nil, engine.ErrConnClosed
	}
	a, ok := c.vars[name]
	if !ok {
		return nil, nil
	}
	return a, nil
}

// PutVariable binds a native copy of value. Only numeric 2-D arrays are
// accepted.
func (c *Conn) PutVariable(name string, value mx.Array) error {
	if c.closed {
		return engine.ErrConnClosed
	}
	if !validName(name) {
		return &engine.StatusError{Op: "put", Status: 1, Message: fmt.Sprintf("invalid variable name %q", name)}
	}
	if value == nil {
		return &engine.StatusError{Op: "put", Status: 1, Message: "nil array"}
	}
	if len(value.Dimensions()) != 2 {
		return &engine.StatusError{Op: "put", Status: 1, Message: "only 2-D arrays are supported"}
	}
	cp, err := mx.CopyNative(value)
	if err != nil {
		return &engine.StatusError{Op: "put", Status: 1, Message: err.Error()}
	}
	c.replace(name, cp)
	return nil
}

func (c *Conn) NewDoubleMatrix(rows, cols int) (mx.Matrix, error) {
	if c.closed {
		return nil, engine.ErrConnClosed
	}
	m, err := mx.NewNativeMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetOutputCapture enables console capture. A capacity of zero or less
// disables it.
func (c *Conn) SetOutputCapture(capacity int) {
	c.capacity = capacity
	c.out.Reset()
	c.full = false
}

func (c *Conn) Output() string {
	return c.out.String()
}

// Close frees every workspace variable. Closing twice is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.clearAll()
	c.closed = true
	return nil
}

// write appends console text, dropping whatever exceeds the capture
// capacity. The cut never splits a UTF-8 sequence.
func (c *Conn) write(s string) {
	room := c.capacity - c.out.Len()
	if c.full || room <= 0 {
		return
	}
	if len(s) > room {
		for room > 0 && !utf8.RuneStart(s[room]) {
			room--
		}
		s = s[:room]
		c.full = true
	}
	c.out.WriteString(s)
}

func (c *Conn) bound(name string) bool {
	_, ok := c.vars[name]
	return ok
}

func (c *Conn) lookup(name string) (*value, error) {
	a, ok := c.vars[name]
	if !ok {
		return nil, fmt.Errorf("Undefined function or variable '%s'.", name)
	}
	return fromArray(a)
}

func (c *Conn) store(name string, v *value) error {
	a, err := v.toNative()
	if err != nil {
		return err
	}
	c.replace(name, a)
	return nil
}

func (c *Conn) replace(name string, a *mx.NativeArray) {
	if old, ok := c.vars[name]; ok {
		old.Destroy()
	}
	c.vars[name] = a
}

func (c *Conn) clearAll() {
	for name, a := range c.vars {
		a.Destroy()
		delete(c.vars, name)
	}
}

func validName(name string) bool {
	if name == "" || len(name) > maxNameLength || !isIdentStart(rune(name[0])) || name[0] == '_' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(rune(name[i])) {
			return false
		}
	}
	return true
}
