package aistream

import (
	"context"
	"sync"
)

// Supervisor tracks the in-flight stream of each conversation key. Starting
// a new stream for a key cancels the previous one, and updates produced by
// a superseded generation are dropped.
type Supervisor struct {
	mu     sync.Mutex
	seq    uint64
	active map[string]*Ticket
}

// NewSupervisor returns an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{active: make(map[string]*Ticket)}
}

// Ticket is one generation of a conversation key.
type Ticket struct {
	Key string
	Gen uint64

	ctx    context.Context
	cancel context.CancelFunc
	sup    *Supervisor
}

// Begin registers a new generation for key, cancelling any stream still
// running for it. The returned ticket's context is derived from parent.
func (s *Supervisor) Begin(parent context.Context, key string) *Ticket {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.seq++
	t := &Ticket{Key: key, Gen: s.seq, ctx: ctx, cancel: cancel, sup: s}
	prev := s.active[key]
	s.active[key] = t
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return t
}

// Abort cancels the current stream for key. It reports whether one was
// running.
func (s *Supervisor) Abort(key string) bool {
	s.mu.Lock()
	t, ok := s.active[key]
	if ok {
		delete(s.active, key)
	}
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// Active returns the number of running streams.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Context is cancelled on Abort, on supersession, or with the parent.
func (t *Ticket) Context() context.Context { return t.ctx }

// Current reports whether t is still the latest generation of its key.
func (t *Ticket) Current() bool {
	t.sup.mu.Lock()
	defer t.sup.mu.Unlock()
	return t.sup.active[t.Key] == t
}

// Guard wraps fn so that it only runs while t is current and not
// cancelled.
func (t *Ticket) Guard(fn func(Update)) func(Update) {
	return func(u Update) {
		if t.ctx.Err() != nil || !t.Current() {
			return
		}
		fn(u)
	}
}

// Done releases the ticket. It is a no-op for superseded tickets.
func (t *Ticket) Done() {
	t.sup.mu.Lock()
	if t.sup.active[t.Key] == t {
		delete(t.sup.active, t.Key)
	}
	t.sup.mu.Unlock()
	t.cancel()
}
