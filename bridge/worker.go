package bridge

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jizhuozhi/go-future"
)

// job is one unit of engine work. It always runs on the worker goroutine.
type job func() (Value, error)

type request struct {
	fn      job
	promise *future.Promise[Value]
	done    chan struct{}
}

func (r request) complete(v Value, err error) {
	r.promise.Set(v, err)
	close(r.done)
}

// worker serializes every engine call of a session through one goroutine
// locked to its OS thread. Engine client libraries keep per-thread state
// and are not reentrant.
type worker struct {
	requests chan request
	quit     chan struct{}

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

func newWorker(queueSize int) *worker {
	w := &worker{
		requests: make(chan request, queueSize),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case req := <-w.requests:
			w.execute(req)
		case <-w.quit:
			// Nothing can be enqueued once stopped is set; finish what is buffered.
			for {
				select {
				case req := <-w.requests:
					w.execute(req)
				default:
					return
				}
			}
		}
	}
}

// execute runs a job, turning a panic into an error so one bad call does
// not take the session down.
func (w *worker) execute(req request) {
	var (
		v   Value
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("engine call panicked: %v", r)
			}
		}()
		v, err = req.fn()
	}()
	req.complete(v, err)
}

// submit enqueues fn and returns its future plus a channel closed once the
// future is resolved.
func (w *worker) submit(fn job) (*future.Future[Value], <-chan struct{}) {
	req := request{
		fn:      fn,
		promise: future.NewPromise[Value](),
		done:    make(chan struct{}),
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		req.complete(Value{}, ErrSessionClosed)
	} else {
		w.requests <- req
	}
	return req.promise.Future(), req.done
}

// do runs fn on the worker and waits for it. Cancelling ctx abandons the
// wait; the job itself still runs to completion.
func (w *worker) do(ctx context.Context, fn job) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}
	fut, done := w.submit(fn)
	select {
	case <-done:
		return fut.Get()
	case <-ctx.Done():
		return Value{}, ctx.Err()
	}
}

// stop rejects new work and lets the goroutine exit after draining the
// queue. It does not wait.
func (w *worker) stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.quit)
	})
}
