package scheduler

import "sync"

// Session owns at most one live Timer. Arming a new handle cancels the
// previous one, so a re-acquired demo never fires a stale OnExpired.
type Session struct {
	opts Options

	mu    sync.Mutex
	timer *Timer
	gen   uint64
}

func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Arm replaces the session's timer with a fresh one for target.
func (s *Session) Arm(target Target, cb Callbacks) *Timer {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	// Schedule may run OnExpired synchronously; keep the lock released so the
	// callback can re-arm.
	t := Schedule(target, cb, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		t.Cancel()
		return t
	}
	s.timer = t
	return t
}

// Cancel stops the current timer, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	s.gen++
}

// Current returns the live timer or nil.
func (s *Session) Current() *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer
}
