package pipeline

import (
	"context"
	"testing"
	"time"
)

type fakeHandle struct {
	id     string
	reg    *SessionRegistry
	closed int
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Close() error {
	h.closed++
	h.reg.Remove(h.id)
	return nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewSessionRegistry()
	if err := reg.Register(&fakeHandle{id: "a", reg: reg}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(&fakeHandle{id: "a", reg: reg}); err != ErrDuplicateSession {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}
	reg.Remove("a")
	reg.Remove("a")
	if reg.Count() != 0 {
		t.Fatalf("expected count 0, got %d", reg.Count())
	}
}

func TestRegistryDrainClosesSessions(t *testing.T) {
	reg := NewSessionRegistry()
	a := &fakeHandle{id: "a", reg: reg}
	b := &fakeHandle{id: "b", reg: reg}
	_ = reg.Register(a)
	_ = reg.Register(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Fatalf("sessions not closed")
	}
	if err := reg.Register(&fakeHandle{id: "c", reg: reg}); err != ErrDraining {
		t.Fatalf("expected draining error, got %v", err)
	}
}

func TestWaitForEmptyHonorsContext(t *testing.T) {
	reg := NewSessionRegistry()
	_ = reg.Register(&fakeHandle{id: "stuck", reg: reg})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if reg.WaitForEmpty(ctx, time.Millisecond) {
		t.Fatalf("expected wait to give up")
	}
}
