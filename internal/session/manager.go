package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/oralvis/internal/auth"
)

// Manager maps session ids to sessions and drops sessions idle for longer than
// idleTimeout. A zero idleTimeout disables expiry.
type Manager struct {
	authenticator auth.Authenticator
	idleTimeout   time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(authenticator auth.Authenticator, idleTimeout time.Duration) *Manager {
	m := &Manager{
		authenticator: authenticator,
		idleTimeout:   idleTimeout,
		now:           time.Now,
		sessions:      make(map[string]*Session),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if idleTimeout > 0 {
		go m.janitor(sweepInterval(idleTimeout))
	} else {
		close(m.done)
	}
	return m
}

func sweepInterval(idle time.Duration) time.Duration {
	if idle > 2*time.Minute {
		return time.Minute
	}
	return idle / 2
}

// Create starts a new Anonymous session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.authenticator)
	s.touch(m.now())

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(s, now) {
		m.End(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// End logs the session out and forgets it.
func (m *Manager) End(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Logout()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the expiry loop and ends all sessions.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Logout()
	}
	return nil
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.idleTimeout > 0 && s.idleSince(now) > m.idleTimeout
}

func (m *Manager) sweep() int {
	now := m.now()
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if m.expired(s, now) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Logout()
	}
	return len(stale)
}

func (m *Manager) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				slog.Debug("expired idle sessions", "count", n)
			}
		}
	}
}
