// Package session holds the server-side login state of each browser client.
//
// A Session is either Anonymous or Authenticated with exactly one Identity. The
// Manager owns all sessions of the process; nothing is persisted, so a restart
// requires every client to log in again.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
)

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

type Session struct {
	id            string
	authenticator auth.Authenticator

	mu       sync.RWMutex
	identity *auth.Identity
	lastSeen time.Time
}

func New(id string, authenticator auth.Authenticator) *Session {
	return &Session{
		id:            id,
		authenticator: authenticator,
		lastSeen:      time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Login replaces the current identity on success. A failed attempt leaves the
// session Anonymous, also when it was Authenticated before.
func (s *Session) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	identity, err := s.authenticator.Authenticate(ctx, email, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.identity = nil
		return auth.Identity{}, err
	}
	s.identity = &identity
	return identity, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}

func (s *Session) CurrentIdentity() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

func (s *Session) State() State {
	if _, ok := s.CurrentIdentity(); ok {
		return Authenticated
	}
	return Anonymous
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}
