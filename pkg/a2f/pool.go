package a2f

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/visagekit/visage/pkg/engine"
)

// Pool is a fixed set of pre-built sessions handed out to connections.
// Bundles are expensive to build, so every session is created up front
// and recycled between connections.
type Pool struct {
	mu       sync.Mutex
	sessions []*Session
	free     []int
}

// NewPool builds cfg.MaxSessions sessions on the provider. On failure
// every already-built session is destroyed.
func NewPool(p engine.Provider, cfg ServerConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool := &Pool{
		sessions: make([]*Session, 0, cfg.MaxSessions),
		free:     make([]int, 0, cfg.MaxSessions),
	}
	for i := 0; i < cfg.MaxSessions; i++ {
		s, err := newSession(p, cfg)
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("a2f: init session %d: %w", i, err)
		}
		pool.sessions = append(pool.sessions, s)
		pool.free = append(pool.free, i)
	}
	return pool, nil
}

// Acquire reserves a free session, resets it, and attaches it to
// sender. It reports false when the pool is exhausted.
func (p *Pool) Acquire(sender FrameSender) (int, bool) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		return 0, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.mu.Unlock()

	if err := p.sessions[idx].ResetForReuse(); err != nil {
		slog.Error("a2f: session reset failed", "session", idx, "error", err)
		p.mu.Lock()
		p.free = append(p.free, idx)
		p.mu.Unlock()
		return 0, false
	}
	p.sessions[idx].Start(sender)
	sessionsActive.Inc()
	sessionsTotal.Inc()
	return idx, true
}

// Release detaches the session from its connection and returns it to
// the free list.
func (p *Pool) Release(idx int) {
	if idx < 0 || idx >= len(p.sessions) {
		return
	}
	p.sessions[idx].Stop()
	sessionsActive.Dec()
	p.mu.Lock()
	p.free = append(p.free, idx)
	p.mu.Unlock()
}

// Get returns the session at idx.
func (p *Pool) Get(idx int) *Session {
	return p.sessions[idx]
}

// Destroy releases every session. The pool is unusable afterwards.
func (p *Pool) Destroy() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = nil
	p.free = nil
	p.mu.Unlock()
	for i, s := range sessions {
		if err := s.Destroy(); err != nil {
			slog.Error("a2f: session destroy failed", "session", i, "error", err)
		}
	}
}
