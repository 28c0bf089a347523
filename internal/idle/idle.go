// Package idle tracks the single live session of a worker and fires a callback
// once that session has been idle for the configured window.
package idle

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for the idle window.
const (
	DefaultTimeout = time.Hour
	MinTimeout     = time.Minute
)

// Session is the worker's current session.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Supervisor owns at most one Session and its idle timer.
//
// Every Touch restarts the timer from the moment of activity. Each armed timer
// carries the generation it was armed under; a timer whose generation is no
// longer current when it fires does nothing, so a superseded deadline or one
// racing Destroy never reaches the callback.
type Supervisor struct {
	mu      sync.Mutex
	timeout time.Duration
	session *Session
	timer   *time.Timer
	gen     uint64
	onIdle  func(Session)
	now     func() time.Time
}

// New returns a Supervisor with the given idle window. Values below MinTimeout
// are raised to it; zero means DefaultTimeout.
func New(timeout time.Duration) *Supervisor {
	return &Supervisor{
		timeout: clamp(timeout),
		now:     time.Now,
	}
}

func clamp(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	return d
}

// OnIdle registers the eviction action. It runs on its own goroutine, outside
// the supervisor's lock, after the session has been destroyed.
func (s *Supervisor) OnIdle(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// Start replaces any current session with a new one and arms the timer.
// An empty id gets a generated "session-<uuid>" id.
func (s *Supervisor) Start(id string) Session {
	if id == "" {
		id = "session-" + uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.session = &Session{ID: id, CreatedAt: now, LastActiveAt: now}
	s.armLocked()
	return *s.session
}

// Touch records activity on the current session and restarts the idle window.
// It returns false when there is no session.
func (s *Supervisor) Touch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return false
	}
	if now := s.now(); now.After(s.session.LastActiveAt) {
		s.session.LastActiveAt = now
	}
	s.armLocked()
	return true
}

// Session returns a copy of the current session.
func (s *Supervisor) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Timeout returns the idle window.
func (s *Supervisor) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// SetTimeout changes the idle window. A live session's deadline is recomputed
// from its last activity.
func (s *Supervisor) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeout = clamp(d)
	if s.session != nil {
		s.armLocked()
	}
}

// Destroy cancels the timer and forgets the session. After Destroy returns no
// idle callback for that session will run.
func (s *Supervisor) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.session = nil
}

// armLocked (re)starts the timer so it fires timeout after LastActiveAt.
func (s *Supervisor) armLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}

	wait := s.timeout - s.now().Sub(s.session.LastActiveAt)
	if wait < 0 {
		wait = 0
	}
	gen := s.gen
	s.timer = time.AfterFunc(wait, func() { s.fire(gen) })
}

func (s *Supervisor) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.session == nil {
		s.mu.Unlock()
		return
	}
	expired := *s.session
	s.gen++
	s.session = nil
	s.timer = nil
	cb := s.onIdle
	s.mu.Unlock()

	if cb != nil {
		cb(expired)
	}
}
