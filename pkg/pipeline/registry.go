package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrDraining         = errors.New("session registry is draining")
	ErrDuplicateSession = errors.New("session id already registered")
)

// Handle is a live session as seen by the registry.
type Handle interface {
	ID() string
	// Close ends the session and releases its upstream resources.
	Close() error
}

type entry struct {
	handle  Handle
	created time.Time
}

// SessionRegistry indexes live sessions by id. It is the only state shared
// between sessions and exists so shutdown can drain them.
type SessionRegistry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

func (r *SessionRegistry) Register(h Handle) error {
	if r.draining.Load() {
		return ErrDraining
	}
	if _, loaded := r.sessions.LoadOrStore(h.ID(), entry{handle: h, created: time.Now()}); loaded {
		return ErrDuplicateSession
	}
	r.count.Add(1)
	return nil
}

func (r *SessionRegistry) Get(id string) (Handle, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(entry).handle, true
	}
	return nil, false
}

// Age returns how long the session has been registered.
func (r *SessionRegistry) Age(id string) (time.Duration, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return time.Since(v.(entry).created), true
	}
	return 0, false
}

// Remove forgets a session without closing it; sessions call it on exit.
func (r *SessionRegistry) Remove(id string) {
	if _, ok := r.sessions.LoadAndDelete(id); ok {
		r.count.Add(-1)
	}
}

// CloseAll closes every live session. Sessions remove themselves as they exit.
func (r *SessionRegistry) CloseAll() {
	r.sessions.Range(func(_, value any) bool {
		_ = value.(entry).handle.Close()
		return true
	})
}

func (r *SessionRegistry) Count() int64 {
	return r.count.Load()
}

func (r *SessionRegistry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *SessionRegistry) Draining() bool {
	return r.draining.Load()
}

// Drain refuses new sessions, closes the live ones and waits until they are gone.
func (r *SessionRegistry) Drain(ctx context.Context) error {
	r.SetDraining(true)
	r.CloseAll()
	if !r.WaitForEmpty(ctx, 0) {
		return ctx.Err()
	}
	return nil
}

func (r *SessionRegistry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
