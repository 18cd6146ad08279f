package api

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/engine"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many open sessions")
)

// SessionManager owns the sessions opened through the host API.
type SessionManager struct {
	eng         engine.Engine
	opts        []bridge.Option
	maxSessions int

	sessions *xsync.MapOf[string, *bridge.Session]
	count    atomic.Int32
}

// NewSessionManager creates a manager that opens sessions on eng with
// opts. A maxSessions of zero or less means no limit.
func NewSessionManager(eng engine.Engine, maxSessions int, opts ...bridge.Option) *SessionManager {
	return &SessionManager{
		eng:         eng,
		opts:        opts,
		maxSessions: maxSessions,
		sessions:    xsync.NewMapOf[string, *bridge.Session](),
	}
}

// Open creates and opens a session. A session that fails to open is
// closed and never tracked.
func (m *SessionManager) Open(ctx context.Context, startCommand string) (*bridge.Session, error) {
	if n := m.count.Add(1); m.maxSessions > 0 && int(n) > m.maxSessions {
		m.count.Add(-1)
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.maxSessions)
	}

	s := bridge.NewSession(m.eng, m.opts...)
	if err := s.Open(ctx, startCommand); err != nil {
		m.count.Add(-1)
		if cerr := s.Close(context.Background()); cerr != nil {
			log.Warn().Err(cerr).Str("session_id", s.ID()).Msg("Failed to close unopened session")
		}
		return nil, err
	}

	m.sessions.Store(s.ID(), s)
	return s, nil
}

// Get returns an open session by ID.
func (m *SessionManager) Get(id string) (*bridge.Session, error) {
	s, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close closes and forgets one session.
func (m *SessionManager) Close(ctx context.Context, id string) error {
	s, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.count.Add(-1)
	return s.Close(ctx)
}

// CloseAll closes every session, returning the first error.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	var firstErr error
	m.sessions.Range(func(id string, _ *bridge.Session) bool {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Warn().Err(err).Str("session_id", id).Msg("Failed to close session")
			if firstErr == nil {
				firstErr = err
			}
		}
		return true
	})
	return firstErr
}

// Len returns the number of tracked sessions.
func (m *SessionManager) Len() int {
	return m.sessions.Size()
}

// RegistryStats implements telemetry.RegistryStatsProvider.
func (m *SessionManager) RegistryStats() (openSessions, registryEntries int) {
	m.sessions.Range(func(_ string, s *bridge.Session) bool {
		openSessions++
		registryEntries += s.Registry().Len()
		return true
	})
	return openSessions, registryEntries
}
