package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/rs/zerolog"

	"github.com/maxpert/mxbridge/cfg"
	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/id"
	"github.com/maxpert/mxbridge/journal"
	"github.com/maxpert/mxbridge/telemetry"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var sessionIDs = sync.OnceValue(func() *id.ClockGenerator {
	return id.NewClockGenerator(cfg.Config.InstanceID)
})

// Session owns one engine connection and the native matrices uploaded
// through it. Every engine call runs on the session's worker goroutine;
// the connection is never touched from anywhere else.
//
// A Session must be closed to stop its worker.
type Session struct {
	id   string
	eng  engine.Engine
	opts options
	log  zerolog.Logger

	state    atomic.Int32
	worker   *worker
	conn     engine.Conn // worker only
	registry *Registry

	outMu  sync.RWMutex
	output string
}

// NewSession creates an unopened session on eng.
func NewSession(eng engine.Engine, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = sessionIDs().NextString()
	}

	return &Session{
		id:       o.id,
		eng:      eng,
		opts:     o,
		log:      o.logger.With().Str("session_id", o.id).Str("engine", eng.Name()).Logger(),
		worker:   newWorker(o.queueSize),
		registry: NewRegistry(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Registry() *Registry { return s.registry }

// Output returns the console text captured by the last evaluation.
func (s *Session) Output() string {
	s.outMu.RLock()
	defer s.outMu.RUnlock()
	return s.output
}

func (s *Session) setOutput(out string) {
	s.outMu.Lock()
	s.output = out
	s.outMu.Unlock()
}

// trace returns a log event when debug tracing is on, nil otherwise.
// Methods on a nil *zerolog.Event are no-ops.
func (s *Session) trace() *zerolog.Event {
	if !s.opts.debug {
		return nil
	}
	return s.log.Info()
}

func (s *Session) checkOpen() error {
	switch s.State() {
	case StateUnopened:
		return ErrNotOpen
	case StateClosed:
		return ErrSessionClosed
	}
	return nil
}

// call runs fn on the worker. The wait is bounded by ctx, or by the call
// timeout when ctx has no deadline.
func (s *Session) call(ctx context.Context, fn job) (Value, error) {
	if s.opts.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.callTimeout)
			defer cancel()
		}
	}
	return s.worker.do(ctx, fn)
}

// Open starts the engine with startCommand (empty = default invocation)
// and installs the output capture buffer.
func (s *Session) Open(ctx context.Context, startCommand string) error {
	_, err := s.call(ctx, func() (Value, error) {
		switch s.State() {
		case StateOpen:
			return Value{}, ErrAlreadyOpen
		case StateClosed:
			return Value{}, ErrSessionClosed
		}

		if !s.opts.startEngine {
			telemetry.SessionOpensTotal.With("unavailable").Inc()
			return Value{}, fmt.Errorf("%w: engine start is disabled", ErrEngineUnavailable)
		}

		s.trace().Str("start_command", startCommand).Msg("engOpen")
		conn, err := s.eng.Open(startCommand)
		if err != nil {
			telemetry.SessionOpensTotal.With("unavailable").Inc()
			return Value{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
		}

		conn.SetOutputCapture(s.opts.outputCapacity)
		s.conn = conn
		s.state.Store(int32(StateOpen))

		telemetry.SessionOpensTotal.With("success").Inc()
		telemetry.SessionsOpen.Inc()
		s.log.Info().Int("output_capacity", s.opts.outputCapacity).Msg("Engine session opened")
		return Value{}, nil
	})
	return err
}

// Eval sends command text to the engine. A non-zero engine status comes
// back as *engine.StatusError and is not retried.
func (s *Session) Eval(ctx context.Context, command string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if strings.TrimSpace(command) == "" {
		return ErrInvalidCommand
	}

	_, err := s.call(ctx, func() (Value, error) {
		if err := s.checkOpen(); err != nil {
			return Value{}, err
		}
		start := time.Now()
		err := s.evalLocked(command)
		s.recordJournal(command, "", Value{}, err, time.Since(start))
		return Value{}, err
	})
	return err
}

// GetVariable fetches name and classifies it. An unbound name is Null.
func (s *Session) GetVariable(ctx context.Context, name string) (Value, error) {
	if err := s.checkOpen(); err != nil {
		return Value{}, err
	}
	if name == "" {
		return Value{}, fmt.Errorf("%w: empty variable name", ErrInvalidArgument)
	}

	return s.call(ctx, func() (Value, error) {
		if err := s.checkOpen(); err != nil {
			return Value{}, err
		}
		return s.fetchLocked(name)
	})
}

func (s *Session) checkEvaluate(command, resultName string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if strings.TrimSpace(command) == "" {
		return ErrInvalidCommand
	}
	if resultName == "" {
		return fmt.Errorf("%w: empty result name", ErrInvalidArgument)
	}
	return nil
}

// Evaluate runs command and returns the value bound to resultName
// afterwards.
func (s *Session) Evaluate(ctx context.Context, command, resultName string) (Value, error) {
	if err := s.checkEvaluate(command, resultName); err != nil {
		return Value{}, err
	}
	return s.call(ctx, func() (Value, error) {
		return s.evaluateLocked(command, resultName)
	})
}

// Submit queues an evaluation and returns its future without waiting.
// Submissions from one goroutine run in order.
func (s *Session) Submit(command, resultName string) *future.Future[Value] {
	if err := s.checkEvaluate(command, resultName); err != nil {
		p := future.NewPromise[Value]()
		p.Set(Value{}, err)
		return p.Future()
	}
	fut, _ := s.worker.submit(func() (Value, error) {
		return s.evaluateLocked(command, resultName)
	})
	return fut
}

// PutVariable uploads a row-major matrix under name and keeps the native
// handle in the registry until RemoveVariables or Close. Invalid input is
// rejected before anything is allocated.
func (s *Session) PutVariable(ctx context.Context, name string, matrix [][]float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty variable name", ErrInvalidArgument)
	}
	if _, _, err := checkRectangular(matrix); err != nil {
		return err
	}

	_, err := s.call(ctx, func() (Value, error) {
		if err := s.checkOpen(); err != nil {
			return Value{}, err
		}
		return Value{}, s.putLocked(name, matrix)
	})
	return err
}

// EvaluateWith uploads vars in name order, evaluates command and fetches
// resultName. The registry is drained afterwards whether or not the call
// succeeded. Values are converted with ToMatrix.
func (s *Session) EvaluateWith(ctx context.Context, command, resultName string, vars map[string]any) (Value, error) {
	if err := s.checkEvaluate(command, resultName); err != nil {
		return Value{}, err
	}

	names := make([]string, 0, len(vars))
	matrices := make(map[string][][]float64, len(vars))
	for name, raw := range vars {
		if name == "" {
			return Value{}, fmt.Errorf("%w: empty variable name", ErrInvalidArgument)
		}
		m, err := ToMatrix(raw)
		if err != nil {
			return Value{}, fmt.Errorf("variable %q: %w", name, err)
		}
		names = append(names, name)
		matrices[name] = m
	}
	sort.Strings(names)

	return s.call(ctx, func() (Value, error) {
		if err := s.checkOpen(); err != nil {
			return Value{}, err
		}
		defer s.registry.ReleaseAll()

		for _, name := range names {
			start := time.Now()
			if err := s.putLocked(name, matrices[name]); err != nil {
				return Value{}, fmt.Errorf("variable %q: %w", name, err)
			}
			s.log.Debug().Str("name", name).Dur("elapsed", time.Since(start)).Msg("Variable uploaded")
		}
		return s.evaluateLocked(command, resultName)
	})
}

// RemoveVariables releases every registered native matrix and returns how
// many were released.
func (s *Session) RemoveVariables(ctx context.Context) (int, error) {
	if s.State() == StateClosed {
		return s.registry.ReleaseAll(), nil
	}
	v, err := s.call(ctx, func() (Value, error) {
		n := s.registry.ReleaseAll()
		s.trace().Int("released", n).Msg("mxDestroyArray")
		return Value{Tag: Long, Int: int64(n)}, nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return s.registry.ReleaseAll(), nil
	}
	if err != nil {
		return 0, err
	}
	return int(v.Int), nil
}

// Close releases the registry, closes the engine connection and stops the
// worker. Closing an unopened or closed session only marks it closed.
// The close job is queued even when ctx is already done.
func (s *Session) Close(ctx context.Context) error {
	fut, done := s.worker.submit(func() (Value, error) {
		prev := State(s.state.Swap(int32(StateClosed)))
		released := s.registry.ReleaseAll()
		if prev != StateOpen {
			return Value{}, nil
		}

		conn := s.conn
		s.conn = nil
		telemetry.SessionsOpen.Dec()

		s.trace().Msg("engClose")
		if err := conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Engine close failed")
			return Value{}, err
		}
		s.log.Info().Int("released", released).Msg("Engine session closed")
		return Value{}, nil
	})
	s.worker.stop()

	select {
	case <-done:
		_, err := fut.Get()
		if errors.Is(err, ErrSessionClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) evaluateLocked(command, resultName string) (Value, error) {
	if err := s.checkOpen(); err != nil {
		return Value{}, err
	}

	start := time.Now()
	var v Value
	err := s.evalLocked(command)
	if err == nil {
		v, err = s.fetchLocked(resultName)
	}
	s.recordJournal(command, resultName, v, err, time.Since(start))
	return v, err
}

func (s *Session) evalLocked(command string) error {
	start := time.Now()
	s.trace().Str("command", command).Msg("engEvalString")

	err := s.conn.Eval(command)
	s.setOutput(s.conn.Output())
	if s.opts.closeAfterEval {
		s.trace().Msg("close;")
		if cerr := s.conn.Eval("close;"); cerr != nil {
			s.log.Warn().Err(cerr).Msg("Close after evaluation failed")
		}
	}

	telemetry.EvalDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.EvaluationsTotal.With("failed").Inc()
		s.trace().Err(err).Msg("engEvalString failed")
		return err
	}
	telemetry.EvaluationsTotal.With("success").Inc()
	return nil
}

// fetchLocked classifies the borrowed array before returning, so it never
// outlives this call.
func (s *Session) fetchLocked(name string) (Value, error) {
	s.trace().Str("name", name).Msg("engGetVariable")
	a, err := s.conn.GetVariable(name)
	if err != nil {
		return Value{}, fmt.Errorf("get %q: %w", name, err)
	}
	v, err := Classify(a)
	if err != nil {
		return Value{}, fmt.Errorf("get %q: %w", name, err)
	}
	telemetry.ValuesClassifiedTotal.With(v.Tag.String()).Inc()
	s.trace().Str("name", name).Stringer("tag", v.Tag).Msg("Variable classified")
	return v, nil
}

func (s *Session) putLocked(name string, matrix [][]float64) error {
	start := time.Now()
	defer func() {
		telemetry.PutDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	handle, err := EncodeReal(s.conn, matrix)
	if err != nil {
		telemetry.VariablesPutTotal.With("failed").Inc()
		return err
	}

	s.trace().Str("name", name).Int("rows", len(matrix)).Int("cols", len(matrix[0])).Msg("engPutVariable")
	if err := s.conn.PutVariable(name, handle); err != nil {
		handle.Destroy()
		telemetry.VariablesPutTotal.With("failed").Inc()
		return fmt.Errorf("put %q: %w", name, err)
	}
	if err := s.registry.Register(name, handle); err != nil {
		handle.Destroy()
		telemetry.VariablesPutTotal.With("failed").Inc()
		return err
	}
	telemetry.VariablesPutTotal.With("success").Inc()
	return nil
}

func (s *Session) recordJournal(command, resultName string, v Value, err error, elapsed time.Duration) {
	if s.opts.journal == nil {
		return
	}
	e := journal.Entry{
		SessionID:  s.id,
		Command:    command,
		ResultName: resultName,
		Status:     journal.StatusOK,
		Duration:   elapsed,
	}
	if err != nil {
		e.Status = journal.StatusError
		e.Error = err.Error()
	} else if resultName != "" {
		e.Tag = v.Tag.String()
	}
	s.opts.journal.Record(e)
}
