package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsJobsInOrder(t *testing.T) {
	w := newWorker(4)
	defer w.stop()

	var (
		mu  sync.Mutex
		got []int64
	)
	for i := int64(0); i < 20; i++ {
		i := i
		w.submit(func() (Value, error) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return Value{}, nil
		})
	}
	_, err := w.do(context.Background(), func() (Value, error) { return Value{}, nil })
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, int64(i), v)
	}
}

func TestWorkerReturnsJobResult(t *testing.T) {
	w := newWorker(1)
	defer w.stop()

	v, err := w.do(context.Background(), func() (Value, error) {
		return Value{Tag: Long, Int: 42}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	fut, _ := w.submit(func() (Value, error) { return Value{}, ErrInvalidCommand })
	_, err = fut.Get()
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := newWorker(1)
	defer w.stop()

	_, err := w.do(context.Background(), func() (Value, error) { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The worker survives.
	v, err := w.do(context.Background(), func() (Value, error) { return Value{Tag: Boolean, Int: 1}, nil })
	require.NoError(t, err)
	assert.Equal(t, Boolean, v.Tag)
}

func TestWorkerContextBoundsWaitOnly(t *testing.T) {
	w := newWorker(1)
	defer w.stop()

	release := make(chan struct{})
	ran := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.do(ctx, func() (Value, error) {
		<-release
		close(ran)
		return Value{}, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("abandoned job never ran")
	}
}

func TestWorkerStop(t *testing.T) {
	w := newWorker(8)

	release := make(chan struct{})
	first, _ := w.submit(func() (Value, error) {
		<-release
		return Value{Tag: Long, Int: 1}, nil
	})
	queued, _ := w.submit(func() (Value, error) { return Value{Tag: Long, Int: 2}, nil })

	w.stop()
	w.stop()
	close(release)

	v, err := first.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)

	// Work buffered before stop still runs.
	v, err = queued.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int)

	_, err = w.do(context.Background(), func() (Value, error) { return Value{}, nil })
	assert.ErrorIs(t, err, ErrSessionClosed)
}
