package bridge

import (
	"errors"
	"sync"

	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/mx"
)

// fakeEngine is a scriptable engine for failure paths.
type fakeEngine struct {
	openErr error
	conn    *fakeConn
	opens   int
	lastCmd string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{conn: newFakeConn()}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Open(startCommand string) (engine.Conn, error) {
	e.opens++
	e.lastCmd = startCommand
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.conn, nil
}

type fakeConn struct {
	mu sync.Mutex

	vars     map[string]mx.Array
	evals    []string
	output   string
	capacity int

	evalErr  error
	putErr   error
	getErr   error
	closeErr error
	allocErr error

	allocated []*mx.NativeArray
	closes    int
}

func newFakeConn() *fakeConn {
	return &fakeConn{vars: make(map[string]mx.Array)}
}

func (c *fakeConn) Eval(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evals = append(c.evals, command)
	c.output = ">> " + command
	return c.evalErr
}

func (c *fakeConn) GetVariable(name string) (mx.Array, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.vars[name], nil
}

func (c *fakeConn) PutVariable(name string, value mx.Array) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	cp, err := mx.CopyNative(value)
	if err != nil {
		return err
	}
	c.vars[name] = cp
	return nil
}

func (c *fakeConn) NewDoubleMatrix(rows, cols int) (mx.Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocErr != nil {
		return nil, c.allocErr
	}
	m, err := mx.NewNativeMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	c.allocated = append(c.allocated, m)
	return m, nil
}

func (c *fakeConn) SetOutputCapture(capacity int) { c.capacity = capacity }

func (c *fakeConn) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return c.closeErr
}

func (c *fakeConn) evalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.evals)
}

var errFakeStatus = &engine.StatusError{Op: "eval", Status: 1, Message: "scripted failure"}

var errFake = errors.New("scripted failure")
