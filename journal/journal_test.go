package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, batch int) *Store {
	t.Helper()
	s, err := Open(":memory:", batch, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t, 2)

	entries := []Entry{
		{SessionID: "a", Command: "x = 1;", ResultName: "x", Tag: "Double", Duration: 3 * time.Millisecond},
		{SessionID: "a", Command: "D = 1:5", ResultName: "D", Tag: "Double"},
		{SessionID: "b", Command: "y = missing", Status: StatusError, Error: "undefined"},
	}
	for _, e := range entries {
		_, err := s.Record(e).Get()
		require.NoError(t, err)
	}

	all, err := s.Recent(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "y = missing", all[0].Command, "newest first")
	assert.Equal(t, StatusError, all[0].Status)
	assert.Equal(t, "undefined", all[0].Error)
	assert.Equal(t, StatusOK, all[2].Status, "status defaults to ok")
	assert.Equal(t, 3*time.Millisecond, all[2].Duration)
	assert.False(t, all[2].CreatedAt.IsZero())

	bySession, err := s.Recent(context.Background(), Query{SessionID: "a"})
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	limited, err := s.Recent(context.Background(), Query{SessionID: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "D = 1:5", limited[0].Command)
}

func TestRecentMatchesRegexp(t *testing.T) {
	s := openTestStore(t, 1)

	for _, cmd := range []string{"a = zeros(2);", "b = ones(3);", "c = zeros(4);"} {
		_, err := s.Record(Entry{SessionID: "s", Command: cmd}).Get()
		require.NoError(t, err)
	}

	got, err := s.Recent(context.Background(), Query{Match: `^[ac] = zeros`})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c = zeros(4);", got[0].Command)
	assert.Equal(t, "a = zeros(2);", got[1].Command)
}

func TestBatchFlushOnTicker(t *testing.T) {
	// Batch size larger than the number of records: only the ticker flushes.
	s := openTestStore(t, 100)

	f1 := s.Record(Entry{SessionID: "s", Command: "a = 1;"})
	f2 := s.Record(Entry{SessionID: "s", Command: "b = 2;"})
	_, err := f1.Get()
	require.NoError(t, err)
	_, err = f2.Get()
	require.NoError(t, err)

	got, err := s.Recent(context.Background(), Query{SessionID: "s"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path, 100, time.Hour)
	require.NoError(t, err)

	fut := s.Record(Entry{SessionID: "s", Command: "x = 1;"})
	require.NoError(t, s.Close())
	_, err = fut.Get()
	require.NoError(t, err)

	_, err = s.Record(Entry{SessionID: "s", Command: "y = 2;"}).Get()
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, s.Close())

	reopened, err := Open(path, 1, time.Millisecond)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Recent(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x = 1;", got[0].Command)
}

func TestRecordRacingCloseAlwaysResolves(t *testing.T) {
	for round := 0; round < 20; round++ {
		s, err := Open(":memory:", 1000, time.Hour)
		require.NoError(t, err)

		const writers = 8
		futures := make(chan *future.Future[error], writers*50)
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					futures <- s.Record(Entry{SessionID: "s", Command: "x = 1;"})
				}
			}()
		}
		require.NoError(t, s.Close())
		wg.Wait()
		close(futures)

		for fut := range futures {
			done := make(chan error, 1)
			go func() {
				_, err := fut.Get()
				done <- err
			}()
			select {
			case err := <-done:
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("record future never resolved")
			}
		}
	}
}
