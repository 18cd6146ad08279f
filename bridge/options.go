package bridge

import (
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/journal"
)

// DefaultOutputCapacity is the console capture buffer installed on Open.
const DefaultOutputCapacity = 8192

const defaultQueueSize = 16

// Journal receives one entry per evaluation. Record must not block; the
// session never waits on the returned future.
type Journal interface {
	Record(e journal.Entry) *future.Future[error]
}

type options struct {
	id             string
	debug          bool
	logger         zerolog.Logger
	outputCapacity int
	journal        Journal
	closeAfterEval bool
	startEngine    bool
	callTimeout    time.Duration
	queueSize      int
}

func defaultOptions() options {
	return options{
		logger:         log.Logger,
		outputCapacity: DefaultOutputCapacity,
		startEngine:    true,
		queueSize:      defaultQueueSize,
	}
}

// Option configures a Session.
type Option func(*options)

// WithDebug traces every engine call through the session logger.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOutputCapacity sets the console capture size in bytes. Zero disables
// capture.
func WithOutputCapacity(capacity int) Option {
	return func(o *options) {
		if capacity < 0 {
			capacity = 0
		}
		o.outputCapacity = capacity
	}
}

func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithCloseAfterEval sends "close;" after every evaluation so figure
// windows do not pile up.
func WithCloseAfterEval(enabled bool) Option {
	return func(o *options) { o.closeAfterEval = enabled }
}

func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithStartEngine(false) makes Open fail with ErrEngineUnavailable without
// touching the engine.
func WithStartEngine(start bool) Option {
	return func(o *options) { o.startEngine = start }
}

// WithCallTimeout bounds how long a public method waits for its engine
// call when the caller's context has no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}
