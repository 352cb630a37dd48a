package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestLifecycleRunnerDrainsOnCancel(t *testing.T) {
	var order []string
	drained := DrainFunc(func(ctx context.Context) error {
		order = append(order, "drain")
		return nil
	})
	r := NewLifecycleRunner(drained, Hooks{
		OnStart: func() { order = append(order, "start") },
		OnStop:  func() { order = append(order, "stop") },
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop")
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
	want := []string{"start", "drain", "stop"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	slow := DrainFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r := NewLifecycleRunner(slow, Hooks{}, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}

func TestLifecycleRunnerRejectsSecondRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Run(ctx); err == nil {
		t.Fatalf("expected error on second run")
	}
}

func TestPrintBannerWritesVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if !bytes.Contains(buf.Bytes(), []byte("Version: "+Version)) {
		t.Fatalf("expected version line, got %q", buf.String())
	}
}
