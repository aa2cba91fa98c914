package bridge

import (
	"context"
	"sync"
	"time"
)

// Registry tracks in-flight agent sessions so they can be aborted by id.
// A periodic sweep cancels and evicts sessions older than the TTL, so
// abandoned sessions do not accumulate for the life of the process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	done     chan struct{}
	closed   bool
}

type session struct {
	cancel    context.CancelFunc
	createdAt time.Time
}

// NewRegistry creates a Registry and starts its sweep loop. ttl of zero
// falls back to 10 minutes.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	r := &Registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Add registers a session's cancel function under its id.
func (r *Registry) Add(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &session{cancel: cancel, createdAt: time.Now()}
}

// Abort cancels an in-flight session and removes it. It reports whether the
// session existed.
func (r *Registry) Abort(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.cancel()
	delete(r.sessions, id)
	return true
}

// Remove drops a finished session without cancelling it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the sweep loop and cancels every remaining session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	for id, s := range r.sessions {
		s.cancel()
		delete(r.sessions, id)
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep cancels and evicts sessions older than the TTL.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if now.Sub(s.createdAt) > r.ttl {
			s.cancel()
			delete(r.sessions, id)
		}
	}
}
