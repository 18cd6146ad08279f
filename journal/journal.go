// Package journal keeps a sqlite history of engine evaluations. Records
// are queued and written in batches, one transaction per flush.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jizhuozhi/go-future"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned for records submitted after Close.
var ErrClosed = errors.New("journal is closed")

const (
	StatusOK    = "ok"
	StatusError = "error"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	command     TEXT    NOT NULL,
	result_name TEXT    NOT NULL DEFAULT '',
	tag         TEXT    NOT NULL DEFAULT '',
	status      TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS evaluations_session ON evaluations(session_id, id);
`

// Entry is one journaled evaluation.
type Entry struct {
	ID         int64         `json:"id" msgpack:"id"`
	SessionID  string        `json:"session_id" msgpack:"session_id"`
	Command    string        `json:"command" msgpack:"command"`
	ResultName string        `json:"result_name,omitempty" msgpack:"result_name,omitempty"`
	Tag        string        `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Status     string        `json:"status" msgpack:"status"`
	Error      string        `json:"error,omitempty" msgpack:"error,omitempty"`
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	CreatedAt  time.Time     `json:"created_at" msgpack:"created_at"`
}

type pendingRecord struct {
	entry   Entry
	promise *future.Promise[error]
}

// Store is a batched sqlite journal.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	pending []*pendingRecord

	maxBatchSize int
	maxWaitTime  time.Duration
	flushCh      chan struct{}

	stopCh  chan struct{}
	stopped bool // guarded by mu
	wg      sync.WaitGroup
}

// Open creates or opens the journal at path (":memory:" is accepted) and
// starts the flush loop.
func Open(path string, maxBatchSize int, maxWaitTime time.Duration) (*Store, error) {
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}
	if maxWaitTime <= 0 {
		maxWaitTime = 50 * time.Millisecond
	}

	dsn := path
	if !strings.Contains(dsn, ":memory:") {
		if strings.Contains(dsn, "?") {
			dsn += "&_journal_mode=WAL&_busy_timeout=5000"
		} else {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Single connection: writes are serialized and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	s := &Store{
		db:           db,
		maxBatchSize: maxBatchSize,
		maxWaitTime:  maxWaitTime,
		flushCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

// Record queues e for the next batch. The future resolves once the batch
// holding e is committed.
func (s *Store) Record(e Entry) *future.Future[error] {
	p := future.NewPromise[error]()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Status == "" {
		e.Status = StatusOK
	}

	// Checked under mu: Close sets stopped under the same lock, so nothing
	// is queued after its final flush.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		p.Set(nil, ErrClosed)
		return p.Future()
	}
	s.pending = append(s.pending, &pendingRecord{entry: e, promise: p})
	full := len(s.pending) >= s.maxBatchSize
	s.mu.Unlock()

	if full {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return p.Future()
}

func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.maxWaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tryFlush()
		case <-s.flushCh:
			s.tryFlush()
		case <-s.stopCh:
			s.tryFlush()
			return
		}
	}
}

func (s *Store) tryFlush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.flush(batch)
}

func (s *Store) flush(batch []*pendingRecord) {
	err := s.write(batch)
	if err != nil {
		log.Warn().Err(err).Int("records", len(batch)).Msg("Failed to write journal batch")
	}
	for _, pr := range batch {
		pr.promise.Set(nil, err)
	}
}

func (s *Store) write(batch []*pendingRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO evaluations
		(session_id, command, result_name, tag, status, error, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, pr := range batch {
		e := pr.entry
		if _, err := stmt.Exec(e.SessionID, e.Command, e.ResultName, e.Tag, e.Status, e.Error,
			e.Duration.Microseconds(), e.CreatedAt.UnixNano()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query selects journal entries. Empty fields do not filter.
type Query struct {
	SessionID string
	// Match is a regular expression applied to the command text.
	Match string
	Limit int
}

// Recent returns matching entries, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Match != "" {
		where = append(where, "command REGEXP ?")
		args = append(args, q.Match)
	}
	query := "SELECT id, session_id, command, result_name, tag, status, error, duration_us, created_at FROM evaluations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			duration int64
			created  int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Command, &e.ResultName, &e.Tag,
			&e.Status, &e.Error, &duration, &created); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(duration) * time.Microsecond
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Flush writes everything queued so far.
func (s *Store) Flush() {
	s.tryFlush()
}

// Close flushes pending records and closes the database. Records submitted
// afterwards fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	return s.db.Close()
}
