package turn

import "errors"

// ErrQueueFull is returned when a session has too many turns waiting.
var ErrQueueFull = errors.New("turn queue full")

// Slot holds the single in-flight turn of a session and the FIFO of turns
// waiting behind it. It is owned by one event loop and is not locked.
type Slot struct {
	active  *Turn
	pending []Turn
	limit   int
}

func NewSlot(limit int) *Slot {
	if limit <= 0 {
		limit = 8
	}
	return &Slot{limit: limit}
}

// Offer queues t. It returns t and true when the slot was free and t is now
// active, so the caller must start it.
func (s *Slot) Offer(t Turn) (Turn, bool, error) {
	if s.active == nil {
		s.active = &t
		return t, true, nil
	}
	if len(s.pending) >= s.limit {
		return Turn{}, false, ErrQueueFull
	}
	s.pending = append(s.pending, t)
	return Turn{}, false, nil
}

// Complete frees the slot for id and promotes the next waiting turn, if any.
// A completion for a turn that is not active is ignored.
func (s *Slot) Complete(id string) (Turn, bool) {
	if s.active == nil || s.active.ID != id {
		return Turn{}, false
	}
	s.active = nil
	if len(s.pending) == 0 {
		return Turn{}, false
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.active = &next
	return next, true
}

// Active returns the in-flight turn id, or "".
func (s *Slot) Active() string {
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

func (s *Slot) Pending() int { return len(s.pending) }

// Reset drops every turn; used on session teardown.
func (s *Slot) Reset() {
	s.active = nil
	s.pending = nil
}
